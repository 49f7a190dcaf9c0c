package sweeper

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"taxmate-hq/throttle/pkg/throttle"
)

var epoch = time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCollector struct {
	mu      sync.Mutex
	calls   int
	lastNow time.Time
	lastAge time.Duration
	remove  int
}

func (f *fakeCollector) CollectGarbage(now time.Time, maxAge time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastNow = now
	f.lastAge = maxAge
	return f.remove
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(&fakeCollector{}, Config{Schedule: "whenever", Logger: discardLogger()})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestNew_NilTarget(t *testing.T) {
	if _, err := New(nil, Config{Schedule: "* * * * *"}); err == nil {
		t.Fatal("expected error for nil target")
	}
}

func TestRunOnce_PassesClockAndMaxAge(t *testing.T) {
	fc := &fakeCollector{remove: 3}
	s, err := New(fc, Config{
		Schedule: "*/15 * * * *",
		MaxAge:   48 * time.Hour,
		Clock:    func() time.Time { return epoch },
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := s.RunOnce(); got != 3 {
		t.Errorf("RunOnce() = %d, want 3", got)
	}
	if !fc.lastNow.Equal(epoch) {
		t.Errorf("collector got now=%v, want %v", fc.lastNow, epoch)
	}
	if fc.lastAge != 48*time.Hour {
		t.Errorf("collector got maxAge=%v, want 48h", fc.lastAge)
	}
	if s.TotalRemoved() != 3 {
		t.Errorf("TotalRemoved() = %d, want 3", s.TotalRemoved())
	}
	if s.LastRun().IsZero() {
		t.Error("expected LastRun to be set")
	}
}

func TestRunOnce_ReclaimsInactiveUsers(t *testing.T) {
	th := throttle.New(throttle.WithLogger(discardLogger()))
	th.Admit("old", throttle.CategoryTextQuery, epoch)
	th.Admit("fresh", throttle.CategoryTextQuery, epoch.Add(30*time.Hour))

	now := epoch.Add(30 * time.Hour)
	s, err := New(th, Config{
		Schedule: "@every 1m",
		MaxAge:   24 * time.Hour,
		Clock:    func() time.Time { return now },
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := s.RunOnce(); got != 1 {
		t.Errorf("RunOnce() = %d, want 1", got)
	}
	if th.Len() != 1 {
		t.Errorf("expected 1 tracked user, got %d", th.Len())
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakeCollector{}, Config{Schedule: "0 3 * * *", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if s.IsRunning() {
		t.Error("expected sweeper not running before Start")
	}
	if s.NextRun() != nil {
		t.Error("expected no next run before Start")
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected sweeper running after Start")
	}
	if s.NextRun() == nil {
		t.Error("expected a next run after Start")
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error starting twice")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("expected sweeper stopped")
	}
	s.Stop()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	s, err := New(&fakeCollector{}, Config{Schedule: "0 3 * * *", Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("expected sweeper to stop after context cancellation")
	}
}
