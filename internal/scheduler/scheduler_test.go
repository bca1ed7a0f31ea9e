package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProcessor struct {
	calls atomic.Int64
}

func (f *fakeProcessor) ProcessEvents(context.Context) error {
	f.calls.Add(1)
	return nil
}

type fakeContests struct {
	daily  atomic.Int64
	lp     atomic.Int64
	volume atomic.Int64
}

func (f *fakeContests) RunDaily(context.Context, int64) error {
	f.daily.Add(1)
	return nil
}

func (f *fakeContests) ScoreLP(context.Context) error {
	f.lp.Add(1)
	return nil
}

func (f *fakeContests) ScoreVolume(context.Context, int64) error {
	f.volume.Add(1)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventAndCatchupLoopsTick(t *testing.T) {
	events := &fakeProcessor{}
	contests := &fakeContests{}
	s := NewScheduler(events, contests, 10*time.Millisecond, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	if n := events.calls.Load(); n < 2 {
		t.Errorf("event cycles = %d, want >= 2", n)
	}
	if n := contests.lp.Load(); n < 2 {
		t.Errorf("lp catchup cycles = %d, want >= 2", n)
	}
	if n := contests.volume.Load(); n < 2 {
		t.Errorf("volume catchup cycles = %d, want >= 2", n)
	}

	after := events.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if events.calls.Load() != after {
		t.Error("event loop kept ticking after cancel")
	}
}

func TestDefaultsApplied(t *testing.T) {
	s := NewScheduler(&fakeProcessor{}, &fakeContests{}, 0, -time.Second, testLogger())
	if s.pollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want %v", s.pollInterval, DefaultPollInterval)
	}
	if s.catchupInterval != DefaultCatchupInterval {
		t.Errorf("catchup interval = %v, want %v", s.catchupInterval, DefaultCatchupInterval)
	}
}

func TestNextDailyRun(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 12, 0, time.UTC)
	next := nextDailyRun(now)
	want := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("nextDailyRun = %v, want %v", next, want)
	}

	// Exactly at midnight schedules the following midnight.
	next = nextDailyRun(want)
	if !next.Equal(want.Add(24 * time.Hour)) {
		t.Errorf("nextDailyRun at boundary = %v", next)
	}
}
