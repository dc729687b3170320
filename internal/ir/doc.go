// Package ir provides the intermediate representation shared by the
// dagbridge compiler, lowering, inspection, and launcher.
//
// This package contains type definitions and their encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types in operator attributes - use int64 for numbers
//   - Fingerprints are computed over canonical JSON (RFC 8785 key order, NFC strings)
//   - Movement wire ids are fixed: ONE_TO_ONE=1, SCATTER_GATHER=2, BROADCAST=3,
//     and NOTHING is written as a BROADCAST with zero targets
//   - All JSON tags use snake_case
package ir
