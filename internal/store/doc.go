// Package store provides SQLite-backed history for dagbridge.
//
// It keeps:
//   - Plans: every compiled execution plan, keyed by plan hash
//   - Units: the generated units each plan references
//   - Launches: one row per execution, with its final status
//   - Rounds: one row per executed round
//
// Store implements launch.Recorder, so a coordinator can write launch
// history directly.
//
// # Ordering
//
// Launch and round rows carry a logical sequence number from launch.Clock.
// Queries order by seq, never by wall time. LastSeq lets a new process
// resume the clock where the previous one stopped.
//
// # Connection
//
// The database runs in WAL mode with synchronous=NORMAL, a five second busy
// timeout and foreign keys enforced. The schema version lives in
// user_version; Open refuses a file stamped by a newer release.
package store
