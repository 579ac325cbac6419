package epoch

import (
	"fmt"
	"time"
)

// Config describes how wall-clock time maps onto gamedays.
type Config struct {
	// Genesis is the instant the first gameday (Start) began. A zero value
	// disables time-derived gamedays; the clock is then advanced explicitly.
	Genesis time.Time

	// Length is the duration of a single gameday. The protocol advances one
	// gameday per hourly sunrise.
	Length time.Duration

	// Start is the gameday active at Genesis.
	Start uint64
}

// DefaultConfig returns the hourly gameday configuration starting at gameday 1.
func DefaultConfig() Config {
	return Config{
		Length: time.Hour,
		Start:  1,
	}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("gameday length must be greater than zero")
	}
	if c.Start == 0 {
		return fmt.Errorf("start gameday must be greater than zero")
	}
	return nil
}

// GamedayAt derives the gameday active at the supplied instant. Instants
// before genesis, or configurations without a genesis, resolve to Start.
func (c Config) GamedayAt(t time.Time) uint64 {
	if c.Genesis.IsZero() || c.Length <= 0 || !t.After(c.Genesis) {
		return c.Start
	}
	elapsed := t.Sub(c.Genesis) / c.Length
	return c.Start + uint64(elapsed)
}
