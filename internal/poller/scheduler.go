package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule fires at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Runner executes one poll cycle.
type Runner interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Schedule     string
	SmokeDelay   time.Duration
	CycleTimeout time.Duration
}

// Scheduler fires a Runner on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	cfg     SchedulerConfig
	logger  *zap.Logger
	running sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	smoke  *time.Timer
	wg     sync.WaitGroup
}

// NewScheduler validates the schedule and builds a stopped Scheduler.
func NewScheduler(runner Runner, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("poller: runner is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("parse poll schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins firing cycles. The context bounds every cycle started by the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("poller scheduled", zap.String("schedule", s.cfg.Schedule))

	if s.cfg.SmokeDelay > 0 {
		s.wg.Add(1)
		s.smoke = time.AfterFunc(s.cfg.SmokeDelay, func() {
			defer s.wg.Done()
			s.logger.Info("running smoke poll cycle")
			s.RunOnce(s.ctx)
		})
	}
}

// Stop halts the schedule and waits for an in-flight cycle to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.smoke != nil && s.smoke.Stop() {
		s.wg.Done()
	}
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		return ctx.Err()
	}
	s.wg.Wait()
	if cancel != nil {
		cancel()
	}
	return nil
}

// RunOnce runs a single cycle unless one is already in progress.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.logger.Warn("previous poll cycle still running; skipping")
		return false
	}
	defer s.running.Unlock()

	if s.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
		defer cancel()
	}
	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Warn("poll cycle did not run", zap.Error(err))
	}
	return true
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	s.RunOnce(ctx)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
