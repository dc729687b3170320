package ir

import (
	"fmt"
)

// Movement is the data-exchange pattern between two connected vertices.
//
// The Go constants are distinct variants; only their wire ids alias.
// MovementNothing and MovementBroadcast both serialize to 3 because plan
// readers predate a dedicated "no movement" id: NOTHING is written as a
// BROADCAST record with an empty target list.
type Movement int

const (
	// MovementNothing does not exchange any data sets.
	MovementNothing Movement = iota
	// MovementOneToOne exchanges data sets one-to-one.
	MovementOneToOne
	// MovementScatterGather partitions records by key and gathers them downstream.
	MovementScatterGather
	// MovementBroadcast delivers every record to all downstream inputs.
	MovementBroadcast
)

// Wire ids. Changing any of these breaks deployed plan readers.
const (
	wireOneToOne      = 1
	wireScatterGather = 2
	wireBroadcast     = 3
)

var movementNames = map[Movement]string{
	MovementNothing:       "nothing",
	MovementOneToOne:      "one_to_one",
	MovementScatterGather: "scatter_gather",
	MovementBroadcast:     "broadcast",
}

// Movements lists every variant in declaration order.
func Movements() []Movement {
	return []Movement{MovementNothing, MovementOneToOne, MovementScatterGather, MovementBroadcast}
}

// ID returns the stable wire id of the movement.
func (m Movement) ID() int {
	switch m {
	case MovementOneToOne:
		return wireOneToOne
	case MovementScatterGather:
		return wireScatterGather
	case MovementNothing, MovementBroadcast:
		return wireBroadcast
	default:
		panic(fmt.Sprintf("ir: unknown movement %d", int(m)))
	}
}

// Valid reports whether m is one of the four declared variants.
func (m Movement) Valid() bool {
	_, ok := movementNames[m]
	return ok
}

// String returns the snake_case name used in job descriptions.
func (m Movement) String() string {
	if name, ok := movementNames[m]; ok {
		return name
	}
	return fmt.Sprintf("movement(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Movement) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown movement %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Movement) UnmarshalText(text []byte) error {
	parsed, err := ParseMovement(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMovement resolves a movement from its snake_case name.
func ParseMovement(name string) (Movement, error) {
	for m, n := range movementNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown movement %q: must be one of nothing, one_to_one, scatter_gather, broadcast", name)
}

// DecodeMovement is the reverse of ID. The id alone cannot tell NOTHING
// from BROADCAST, so the record's target count decides: a BROADCAST id with
// zero targets is NOTHING.
func DecodeMovement(id int, targets int) (Movement, error) {
	switch id {
	case wireOneToOne:
		return MovementOneToOne, nil
	case wireScatterGather:
		return MovementScatterGather, nil
	case wireBroadcast:
		if targets == 0 {
			return MovementNothing, nil
		}
		return MovementBroadcast, nil
	default:
		return 0, fmt.Errorf("unknown movement id %d", id)
	}
}
