// Package daemon runs the periodic refresh loop and watches the Claude
// directory for session changes.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one step of a refresh cycle
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats tracks scheduler activity
type Stats struct {
	StartTime time.Time
	LastRun   time.Time
	Runs      int
	Errors    int
}

// Scheduler runs its jobs on an interval and whenever Trigger is called.
// Jobs in a cycle run in order; a failing job does not stop the others.
type Scheduler struct {
	jobs     []Job
	interval func() time.Duration
	trigger  chan struct{}
	logger   *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewScheduler creates a Scheduler. interval is read before every wait, so
// a changed setting applies from the next cycle.
func NewScheduler(interval func() time.Duration, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger
func (s *Scheduler) WithLogger(l *slog.Logger) *Scheduler {
	s.logger = l
	return s
}

// Trigger requests an immediate cycle. Triggers that arrive while one is
// already pending are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run executes a cycle immediately and then on every interval or trigger
// until ctx is canceled
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.stats.StartTime = time.Now()
	s.mu.Unlock()

	s.RunOnce(ctx)

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped")
			return nil
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		s.RunOnce(ctx)
		timer.Reset(s.nextInterval())
	}
}

func (s *Scheduler) nextInterval() time.Duration {
	d := s.interval()
	if d <= 0 {
		d = time.Minute
	}
	return d
}

// RunOnce runs every job once
func (s *Scheduler) RunOnce(ctx context.Context) {
	errs := 0
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		if err := job.Run(ctx); err != nil {
			errs++
			s.logger.Warn("refresh job failed", "job", job.Name, "error", err)
		}
	}

	s.mu.Lock()
	s.stats.Runs++
	s.stats.Errors += errs
	s.stats.LastRun = time.Now()
	s.mu.Unlock()
}

// Stats returns a copy of the current statistics
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
