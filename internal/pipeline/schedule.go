package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (domain.RunReport, error)
}

// Scheduler triggers runs on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	runner Runner
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates a Scheduler for runner.
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		runner: runner,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger: logger,
	}
}

// Start registers the schedule (standard five-field cron or descriptors such
// as "@every 6h") and starts the cron loop. Runs use ctx, so cancelling it
// stops an in-flight run.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.RunNow(ctx) }); err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", schedule)
	return nil
}

// Stop stops the cron loop. The returned context is done once any running
// job has returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// RunNow performs a run synchronously and logs the outcome. Overlap with a
// scheduled run is reported by the runner as ErrRunInProgress.
func (s *Scheduler) RunNow(ctx context.Context) {
	// Run failures are logged by the runner.
	if _, err := s.runner.Run(ctx); errors.Is(err, ErrRunInProgress) {
		s.logger.InfoContext(ctx, "run skipped, previous run still in progress")
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
