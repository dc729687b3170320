package launch

import "sync/atomic"

// Clock is a monotonic logical clock. The coordinator stamps every launch
// event it records with Next, so history reads back in the order it
// happened regardless of wall time.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
