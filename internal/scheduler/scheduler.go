// Package scheduler runs the background processing loops:
//  1. eventLoop   - replays staged raw events on a fixed poll interval.
//  2. dailyLoop   - stages and scores leaderboard snapshots at each UTC
//     day boundary.
//  3. catchupLoop - scores stragglers (event-tagged LP snapshots, volume
//     snapshots) on a short interval between daily runs.
//
// One cycle of each job runs at a time; loops sleep between cycles rather
// than overlap, and every job resumes from persisted processed markers, so
// process termination needs no cooperative cancellation beyond the context.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// EventProcessor is the event replay cycle the scheduler drives.
type EventProcessor interface {
	ProcessEvents(ctx context.Context) error
}

// ContestEngine is the leaderboard surface the scheduler drives.
type ContestEngine interface {
	RunDaily(ctx context.Context, now int64) error
	ScoreLP(ctx context.Context) error
	ScoreVolume(ctx context.Context, now int64) error
}

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultCatchupInterval = 5 * time.Minute
)

// Scheduler owns the three loops. Call Start once; cancel the context to
// shut down.
type Scheduler struct {
	events   EventProcessor
	contests ContestEngine

	pollInterval    time.Duration
	catchupInterval time.Duration

	logger *slog.Logger
}

// NewScheduler creates a scheduler. Non-positive intervals fall back to the
// defaults.
func NewScheduler(events EventProcessor, contests ContestEngine, pollInterval, catchupInterval time.Duration, logger *slog.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if catchupInterval <= 0 {
		catchupInterval = DefaultCatchupInterval
	}
	return &Scheduler{
		events:          events,
		contests:        contests,
		pollInterval:    pollInterval,
		catchupInterval: catchupInterval,
		logger:          logger.With("component", "scheduler"),
	}
}

// Start launches the loops. It returns immediately; all loops run until ctx
// is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.eventLoop(ctx)
	go s.dailyLoop(ctx)
	go s.catchupLoop(ctx)
	s.logger.Info("scheduler started",
		"poll_interval", s.pollInterval, "catchup_interval", s.catchupInterval)
}

func (s *Scheduler) eventLoop(ctx context.Context) {
	defer s.recoverAndLog("eventLoop")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("eventLoop: shutting down")
			return
		case <-ticker.C:
			if err := s.events.ProcessEvents(ctx); err != nil {
				s.logger.Error("eventLoop: cycle failed", "err", err)
			}
		}
	}
}

// dailyLoop aligns to each UTC midnight and runs the full leaderboard
// cycle: daily snapshots, backfill, LP scoring.
func (s *Scheduler) dailyLoop(ctx context.Context) {
	defer s.recoverAndLog("dailyLoop")

	for {
		now := time.Now().UTC()
		next := nextDailyRun(now)
		wait := next.Sub(now)

		s.logger.Info("next daily leaderboard run", "time", next.Format(time.RFC3339), "wait", wait.Round(time.Second))

		select {
		case <-ctx.Done():
			s.logger.Info("dailyLoop: shutting down")
			return
		case <-time.After(wait):
		}

		if err := s.contests.RunDaily(ctx, time.Now().UTC().UnixMilli()); err != nil {
			s.logger.Error("dailyLoop: cycle failed", "err", err)
		}
	}
}

// catchupLoop scores pending LP and volume snapshots between daily runs.
func (s *Scheduler) catchupLoop(ctx context.Context) {
	defer s.recoverAndLog("catchupLoop")

	ticker := time.NewTicker(s.catchupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("catchupLoop: shutting down")
			return
		case <-ticker.C:
			if err := s.contests.ScoreLP(ctx); err != nil {
				s.logger.Error("catchupLoop: lp scoring failed", "err", err)
			}
			if err := s.contests.ScoreVolume(ctx, time.Now().UTC().UnixMilli()); err != nil {
				s.logger.Error("catchupLoop: volume scoring failed", "err", err)
			}
		}
	}
}

// nextDailyRun returns the next UTC midnight after now.
func nextDailyRun(now time.Time) time.Time {
	return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
}

// recoverAndLog is deferred inside each goroutine to catch unexpected
// panics and log them.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("panic recovered in scheduler loop", "loop", loop, "panic", r)
	}
}
