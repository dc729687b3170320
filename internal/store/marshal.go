package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dagbridge/internal/ir"
)

// marshalStrings converts a string map to canonical JSON TEXT for storage.
// A nil map is stored as {}.
func marshalStrings(m map[string]string) (string, error) {
	obj := make(ir.Map, len(m))
	for k, v := range m {
		obj[k] = ir.Str(v)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings reads a map written by marshalStrings.
func unmarshalStrings(text string) (map[string]string, error) {
	m := map[string]string{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return m, nil
}
