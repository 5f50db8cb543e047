// Package scheduler repeats copy passes on a cron schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yairfalse/aurora-snapshot-copier/internal/errors"
	"github.com/yairfalse/aurora-snapshot-copier/internal/logger"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard five-field cron schedule, e.g.
//   - "0 3 * * *"    daily at 3 AM
//   - "0 */6 * * *"  every 6 hours
//
// A run that is still in progress when the next one is due causes that
// next run to be skipped.
type Scheduler struct {
	schedule string
	job      Job
	cron     *cron.Cron
	log      logger.Logger

	mu      sync.Mutex
	running bool
}

// Validate checks a cron expression
func Validate(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return errors.Configuration("invalid cron schedule %q: %v", schedule, err)
	}
	return nil
}

// New creates a Scheduler. It does nothing until Start.
func New(schedule string, job Job, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		schedule: schedule,
		job:      job,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:      log.WithField("component", "scheduler"),
	}
}

// Start schedules the job and returns. The scheduler stops when ctx is done.
// An empty schedule does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.log.Info("No schedule configured, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if err := Validate(s.schedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunNow(ctx) }); err != nil {
		return errors.Wrap(errors.ErrorTypeConfiguration, err, "failed to schedule copy pass")
	}

	s.cron.Start()
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("Scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunNow executes the job once in the calling goroutine
func (s *Scheduler) RunNow(ctx context.Context) {
	s.log.Info("Starting scheduled copy pass")

	if err := s.job(ctx); err != nil {
		s.log.Error("Scheduled copy pass finished with failures", err)
		return
	}

	s.log.Info("Scheduled copy pass completed")
}

// Stop stops the scheduler and waits for a running job to complete
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("Scheduler stopped")
}

// IsRunning reports whether the scheduler is started
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled run, or nil when nothing is scheduled
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
