// Package sweeper reclaims the memory of inactive users on a cron schedule.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taxmate-hq/throttle/pkg/throttle"

	"github.com/robfig/cron/v3"
)

// Collector is the part of the throttle the sweeper drives.
type Collector interface {
	CollectGarbage(now time.Time, maxAge time.Duration) int
}

var _ Collector = (*throttle.Throttle)(nil)

// Config controls a Sweeper.
type Config struct {
	// Schedule is a standard 5-field cron expression (e.g. "*/15 * * * *").
	Schedule string

	// MaxAge is passed to CollectGarbage on every run.
	MaxAge time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Sweeper runs CollectGarbage at scheduled intervals.
type Sweeper struct {
	target   Collector
	schedule string
	maxAge   time.Duration
	clock    func() time.Time
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
	removed int
}

// New creates a sweeper. The schedule is validated here so that a bad
// expression is reported before the service starts.
func New(target Collector, cfg Config) (*Sweeper, error) {
	if target == nil {
		return nil, errors.New("sweeper target is nil")
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sweeper{
		target:   target,
		schedule: cfg.Schedule,
		maxAge:   cfg.MaxAge,
		clock:    cfg.Clock,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:   cfg.Logger.With("component", "throttle.sweeper"),
	}, nil
}

// Start schedules the collection job. The sweeper stops when ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("sweeper already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule garbage collection: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("sweeper started",
		"schedule", s.schedule,
		"max_age", s.maxAge.String(),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce performs one collection immediately and returns the number of
// users removed.
func (s *Sweeper) RunOnce() int {
	start := time.Now()
	removed := s.target.CollectGarbage(s.clock(), s.maxAge)

	s.mu.Lock()
	s.lastRun = start
	s.removed += removed
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("garbage collection completed",
			"removed_users", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		s.logger.Debug("garbage collection completed, no users removed")
	}
	return removed
}

// Stop stops the scheduler and waits for a running collection to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// RunOnce takes s.mu, so wait for it outside the lock.
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// IsRunning reports whether the schedule is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled collection, or nil when the sweeper
// is not running.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

// LastRun returns when the last collection started. The zero time means
// no collection has run yet.
func (s *Sweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// TotalRemoved returns the number of users removed since the sweeper was
// created.
func (s *Sweeper) TotalRemoved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}
