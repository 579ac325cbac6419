package epoch

import (
	"fmt"
	"math"
	"sync"

	silerrors "hooliganhorde/core/errors"
)

// Clock tracks the current gameday. It only moves forward.
type Clock struct {
	mu      sync.RWMutex
	current uint64
}

// NewClock returns a clock positioned at the supplied gameday.
func NewClock(start uint64) *Clock {
	return &Clock{current: start}
}

// Current returns the active gameday.
func (c *Clock) Current() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Advance moves the clock forward by n gamedays and returns the new value.
// Steps that would overflow the gameday are rejected.
func (c *Clock) Advance(n uint64) (uint64, error) {
	if c == nil {
		return 0, fmt.Errorf("clock not configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := add(c.current, n)
	if err != nil {
		return c.current, err
	}
	c.current = next
	return c.current, nil
}

// Peek returns the gameday n steps ahead without moving the clock.
func (c *Clock) Peek(n uint64) (uint64, error) {
	return add(c.Current(), n)
}

func add(current, n uint64) (uint64, error) {
	if n > math.MaxUint64-current {
		return 0, fmt.Errorf("%w: advancing %d from %d overflows", silerrors.ErrInvalidEpoch, n, current)
	}
	return current + n, nil
}

// Set positions the clock at gameday g. Moving backwards is rejected.
func (c *Clock) Set(g uint64) error {
	if c == nil {
		return fmt.Errorf("clock not configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g < c.current {
		return fmt.Errorf("%w: set %d while at %d", silerrors.ErrInvalidEpoch, g, c.current)
	}
	c.current = g
	return nil
}

// CatchUp moves the clock to g when g is ahead of the current gameday and
// reports whether the clock changed. Stale values are ignored.
func (c *Clock) CatchUp(g uint64) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g <= c.current {
		return false
	}
	c.current = g
	return true
}
