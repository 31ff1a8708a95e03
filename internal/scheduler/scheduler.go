// Package scheduler runs the publication pipeline on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Runner performs one scheduled run
type Runner interface {
	RunScheduled(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) RunScheduled(ctx context.Context) error { return f(ctx) }

// Recorder counts scheduled runs by status
type Recorder interface {
	RecordScheduledRun(status string)
}

// Config holds scheduler configuration
type Config struct {
	// Spec is a standard five field cron expression evaluated in UTC
	Spec string
	// Timeout bounds a single run; zero means no limit
	Timeout time.Duration
}

// Scheduler manages the cron job
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	metrics Recorder
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	lastOK time.Time
}

// New creates a scheduler. Runs never overlap: a tick arriving while the
// previous run is still going is skipped.
func New(cfg Config, runner Runner, metrics Recorder, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "scheduler needs a runner")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{
		cron:    c,
		runner:  runner,
		metrics: metrics,
		timeout: cfg.Timeout,
		logger:  logger,
		ctx:     context.Background(),
	}

	if _, err := c.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("register schedule %q: %w", cfg.Spec, err))
	}
	return s, nil
}

// Start starts the cron scheduler. Runs inherit ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.Time("next_run", s.Next()))
}

// Stop cancels a running job and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Next returns the time of the next scheduled run
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().UTC())
}

// LastSuccess returns when the last successful run finished
func (s *Scheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOK
}

// RunNow executes one run immediately, outside the cron schedule
func (s *Scheduler) RunNow(ctx context.Context) error {
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	// run logs and counts its own failure
	_ = s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("scheduled run started")

	err := s.runner.RunScheduled(ctx)

	status := StatusOK
	if err != nil {
		status = StatusFailed
		s.logger.Error("scheduled run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
	} else {
		s.mu.Lock()
		s.lastOK = time.Now()
		s.mu.Unlock()
		s.logger.Info("scheduled run finished", zap.Duration("duration", time.Since(start)))
	}

	if s.metrics != nil {
		s.metrics.RecordScheduledRun(status)
	}
	return err
}

// cronLogger routes cron's internal logging through zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
