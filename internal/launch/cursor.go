package launch

import (
	"errors"
	"fmt"
)

// ErrIllegalState is returned when a cursor is advanced past its last round.
var ErrIllegalState = errors.New("illegal cursor state")

// CursorState is where a cursor is in its round sequence.
type CursorState int

const (
	CursorNotStarted CursorState = iota
	CursorInProgress
	CursorExhausted
)

func (s CursorState) String() string {
	switch s {
	case CursorNotStarted:
		return "not_started"
	case CursorInProgress:
		return "in_progress"
	case CursorExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("CursorState(%d)", int(s))
	}
}

// Cursor yields the rounds of a RoundPlan in ascending index order, each
// exactly once. It is not safe for concurrent use.
type Cursor struct {
	plan *RoundPlan
	next int
}

// HasNext reports whether Advance will return another round.
func (c *Cursor) HasNext() bool {
	return c.next <= c.plan.Rounds()
}

// Advance returns the next round's configuration. After the last round it
// fails with ErrIllegalState.
func (c *Cursor) Advance() (RoundConfig, error) {
	if !c.HasNext() {
		return RoundConfig{}, fmt.Errorf("%w: all %d rounds already advanced", ErrIllegalState, c.plan.Rounds())
	}
	rc := c.plan.Round(c.next)
	c.next++
	return rc, nil
}

// State returns the cursor's position. A plan without rounds starts out
// exhausted.
func (c *Cursor) State() CursorState {
	switch {
	case !c.HasNext():
		return CursorExhausted
	case c.next == 1:
		return CursorNotStarted
	default:
		return CursorInProgress
	}
}
