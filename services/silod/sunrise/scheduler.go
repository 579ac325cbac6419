package sunrise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Gamedays is the part of the silo service driven by the scheduler.
type Gamedays interface {
	Advance(ctx context.Context, n uint64) (uint64, error)
	CatchUp(ctx context.Context) (uint64, bool, error)
}

// Scheduler runs the sunrise job. With a wall-clock genesis the gameday
// catches up to the time-derived value; otherwise each tick advances it by
// one.
type Scheduler struct {
	cron       *cron.Cron
	gamedays   Gamedays
	wallClock  bool
	logger     *slog.Logger
	ctx        context.Context
	mu         sync.Mutex
	lastResult uint64
}

// New creates a scheduler firing on schedule, a cron expression with an
// optional seconds field or a descriptor such as "@hourly".
func New(ctx context.Context, gamedays Gamedays, schedule string, wallClock bool, logger *slog.Logger) (*Scheduler, error) {
	if gamedays == nil {
		return nil, fmt.Errorf("sunrise: gameday source required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		gamedays:  gamedays,
		wallClock: wallClock,
		logger:    logger,
		ctx:       ctx,
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("register sunrise %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sunrise scheduler started", slog.Bool("wall_clock", s.wallClock))
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sunrise scheduler stopped")
}

// RunNow executes a tick immediately.
func (s *Scheduler) RunNow() {
	s.tick()
}

// Last returns the gameday produced by the most recent successful tick.
func (s *Scheduler) Last() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

func (s *Scheduler) tick() {
	var (
		gameday uint64
		err     error
	)
	if s.wallClock {
		var changed bool
		gameday, changed, err = s.gamedays.CatchUp(s.ctx)
		if err == nil && !changed {
			return
		}
	} else {
		gameday, err = s.gamedays.Advance(s.ctx, 1)
	}
	if err != nil {
		s.logger.Error("sunrise failed", slog.Any("error", err))
		return
	}
	s.mu.Lock()
	s.lastResult = gameday
	s.mu.Unlock()
}
