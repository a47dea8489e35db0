package types

import (
	"sync/atomic"
	"time"
)

// Clock supplies the current time to the engine.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return ClockFunc(time.Now) }

// NonDecreasing wraps a Clock so that successive readings never go
// backwards, even if the wall clock is stepped back. Readings are UTC.
func NonDecreasing(c Clock) Clock {
	if nd, ok := c.(*nonDecreasing); ok {
		return nd
	}
	return &nonDecreasing{src: c}
}

type nonDecreasing struct {
	src  Clock
	last atomic.Int64 // unix nanoseconds
}

func (n *nonDecreasing) Now() time.Time {
	for {
		t := n.src.Now().UTC()
		ns := t.UnixNano()
		last := n.last.Load()
		if ns < last {
			return time.Unix(0, last).UTC()
		}
		if n.last.CompareAndSwap(last, ns) {
			return t
		}
	}
}

// DayBounds returns the first and last whole second of t's UTC calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Second)
}

// TruncateSecond drops sub-second precision and converts to UTC.
func TruncateSecond(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
