package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the attribute value types an operator
// may carry. Only Str, Int, Bool, List, and Map implement it.
// There is no float and no null: both would make fingerprints unstable.
type Value interface {
	value()
}

// Str is a string attribute value.
type Str string

func (Str) value() {}

// Int is an integer attribute value. Always int64, never float64.
type Int int64

func (Int) value() {}

// Bool is a boolean attribute value.
type Bool bool

func (Bool) value() {}

// List is an ordered list of values.
type List []Value

func (List) value() {}

// Map maps string keys to values. Use SortedKeys for deterministic iteration.
type Map map[string]Value

func (Map) value() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's native string order compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// MarshalJSON writes the map with sorted keys.
// This is NOT the canonical form; use MarshalCanonical for hashing.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON writes the list elements in order.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		val, err := marshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		buf.Write(val)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Str:
		return json.Marshal(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return val.MarshalJSON()
	case Map:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// UnmarshalJSON decodes a JSON object, rejecting floats and nulls.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Map)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	*m = obj
	return nil
}

// UnmarshalJSON decodes a JSON array, rejecting floats and nulls.
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := ParseValue(data)
	if err != nil {
		return err
	}
	arr, ok := v.(List)
	if !ok {
		return fmt.Errorf("expected array, got %T", v)
	}
	*l = arr
	return nil
}

// ParseValue decodes JSON into a Value with strict validation.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts decoded Go data (as produced by encoding/json with
// UseNumber, or by yaml/CUE decoding) into a Value.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid attribute value")
	case Value:
		return val, nil
	case string:
		return Str(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not valid attribute values: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not valid attribute values: %v", val)
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
