// Package scheduler runs periodic revaluations on a clock-aligned schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context) error

// Run records one execution of the job
type Run struct {
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Config holds scheduler configuration
type Config struct {
	Interval       string         // Duration (e.g., "5m") or cron expression (e.g., "*/5 * * * *")
	Timezone       *time.Location // Default: UTC
	RunImmediately bool
	Logger         *slog.Logger
}

// Scheduler wraps gocron and remembers how the last run went.
type Scheduler struct {
	cron           gocron.Scheduler
	job            gocron.Job
	schedule       Schedule
	timezone       *time.Location
	runImmediately bool
	logger         *slog.Logger

	mu   sync.RWMutex
	last Run
	runs uint64
}

// NewScheduler creates a scheduler running jobFunc on cfg.Interval. Runs never
// overlap; a run that is still busy when the next one is due makes it skip.
func NewScheduler(ctx context.Context, cfg Config, jobFunc JobFunc) (*Scheduler, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	schedule, err := ParseSchedule(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}

	s := &Scheduler{
		schedule:       schedule,
		timezone:       cfg.Timezone,
		runImmediately: cfg.RunImmediately,
		logger:         cfg.Logger,
	}

	s.cron, err = gocron.NewScheduler(
		gocron.WithLocation(cfg.Timezone),
		gocron.WithLogger(&slogAdapter{logger: cfg.Logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	s.logger.Info("Revaluation scheduled", "schedule", schedule.Describe(cfg.Timezone))

	s.job, err = s.cron.NewJob(
		gocron.CronJob(schedule.Cron, schedule.WithSeconds),
		gocron.NewTask(func() { s.execute(ctx, jobFunc) }),
		gocron.WithName("revaluation"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}

	return s, nil
}

func (s *Scheduler) execute(ctx context.Context, jobFunc JobFunc) {
	started := time.Now()
	err := jobFunc(ctx)
	run := Run{Started: started, Duration: time.Since(started), Err: err}

	s.mu.Lock()
	s.last = run
	s.runs++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Job execution failed", "error", err, "duration", run.Duration)
		return
	}
	s.logger.Debug("Job execution completed", "duration", run.Duration)
}

// Start begins the scheduler
func (s *Scheduler) Start() error {
	s.cron.Start()

	if s.runImmediately {
		s.logger.Info("Executing job immediately")
		if err := s.job.RunNow(); err != nil {
			// Scheduled runs still go ahead
			s.logger.Error("Immediate execution failed", "error", err)
		}
	}

	if nextRun, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started", "next_run", nextRun.Format(time.RFC3339), "timezone", s.timezone.String())
	} else {
		s.logger.Info("Scheduler started")
	}
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.cron.Shutdown()
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	nextRun, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// LastRun returns the most recent completed run, if any
func (s *Scheduler) LastRun() (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.runs > 0
}

// Runs returns how many runs have completed
func (s *Scheduler) Runs() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}

// ExpectedInterval returns the period between runs
func (s *Scheduler) ExpectedInterval() time.Duration {
	return s.schedule.ExpectedInterval()
}

// Schedule returns the parsed schedule
func (s *Scheduler) Schedule() Schedule {
	return s.schedule
}

// slogAdapter adapts slog.Logger to the gocron.Logger interface
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
