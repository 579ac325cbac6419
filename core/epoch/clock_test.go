package epoch

import (
	"errors"
	"math"
	"testing"
	"time"

	silerrors "hooliganhorde/core/errors"
)

func TestClockAdvanceAndSet(t *testing.T) {
	clock := NewClock(5)
	if got, err := clock.Advance(3); err != nil || got != 8 {
		t.Fatalf("advance: got %d want 8 (%v)", got, err)
	}
	if err := clock.Set(10); err != nil {
		t.Fatalf("set forward: %v", err)
	}
	if err := clock.Set(9); !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}
	if clock.Current() != 10 {
		t.Fatalf("clock moved on rejected set: %d", clock.Current())
	}
}

func TestClockAdvanceRejectsOverflow(t *testing.T) {
	clock := NewClock(5)
	got, err := clock.Advance(math.MaxUint64)
	if !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected ErrInvalidEpoch, got %v", err)
	}
	if got != 5 || clock.Current() != 5 {
		t.Fatalf("clock moved on overflow: %d %d", got, clock.Current())
	}
	if _, err := clock.Peek(math.MaxUint64 - 4); !errors.Is(err, silerrors.ErrInvalidEpoch) {
		t.Fatalf("expected peek overflow, got %v", err)
	}
	if next, err := clock.Peek(math.MaxUint64 - 5); err != nil || next != math.MaxUint64 {
		t.Fatalf("peek to max: %d %v", next, err)
	}
}

func TestClockCatchUpIgnoresStaleValues(t *testing.T) {
	clock := NewClock(20)
	if clock.CatchUp(19) {
		t.Fatalf("expected stale gameday to be ignored")
	}
	if !clock.CatchUp(21) {
		t.Fatalf("expected catch up to report change")
	}
	if clock.Current() != 21 {
		t.Fatalf("unexpected gameday %d", clock.Current())
	}
}

func TestConfigGamedayAt(t *testing.T) {
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Genesis: genesis, Length: time.Hour, Start: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cases := []struct {
		at   time.Time
		want uint64
	}{
		{genesis.Add(-time.Minute), 1},
		{genesis, 1},
		{genesis.Add(59 * time.Minute), 1},
		{genesis.Add(time.Hour), 2},
		{genesis.Add(25*time.Hour + time.Second), 26},
	}
	for _, tc := range cases {
		if got := cfg.GamedayAt(tc.at); got != tc.want {
			t.Fatalf("gameday at %s: got %d want %d", tc.at, got, tc.want)
		}
	}
}

func TestConfigValidateRejectsZeroLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Length = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero length to be rejected")
	}
}
