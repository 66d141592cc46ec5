// Package schedule runs the watcher on a cron schedule and on demand,
// never letting two runs overlap.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/gp-agenda-watcher/internal/watcher"
)

// ErrBusy is returned by RunNow while another run is in progress.
var ErrBusy = errors.New("a watcher run is already in progress")

// ErrDrained is returned by RunNow after Drain.
var ErrDrained = errors.New("scheduler is shutting down")

// Runner performs a single watcher run.
type Runner interface {
	Run(ctx context.Context) (watcher.Result, error)
}

// Config holds the cron expression and the zone it is evaluated in.
type Config struct {
	Cron     string
	Timezone string
}

// Scheduler serializes watcher runs triggered by cron and by callers.
type Scheduler struct {
	runner   Runner
	spec     string
	location *time.Location
	logger   *zap.Logger

	runMu   sync.Mutex
	drained bool

	mu   sync.RWMutex
	last *watcher.Result
	cron *cron.Cron
}

// New validates cfg and returns an idle scheduler.
func New(runner Runner, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, fmt.Errorf("schedule: runner is required")
	}
	if cfg.Cron == "" {
		return nil, fmt.Errorf("schedule.cron is required")
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("schedule.cron %q: %w", cfg.Cron, err)
	}
	location := time.UTC
	if cfg.Timezone != "" {
		tz, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule.timezone %q: %w", cfg.Timezone, err)
		}
		location = tz
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, spec: cfg.Cron, location: location, logger: logger}, nil
}

// RunNow runs the watcher immediately, or returns ErrBusy if a run is in flight.
func (s *Scheduler) RunNow(ctx context.Context) (watcher.Result, error) {
	if !s.runMu.TryLock() {
		return watcher.Result{}, ErrBusy
	}
	defer s.runMu.Unlock()
	if s.drained {
		return watcher.Result{}, ErrDrained
	}

	res, err := s.runner.Run(ctx)

	s.mu.Lock()
	s.last = &res
	s.mu.Unlock()

	return res, err
}

// Last returns the most recent result, if any run has finished.
func (s *Scheduler) Last() (watcher.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return watcher.Result{}, false
	}
	return *s.last, true
}

// Start registers the cron job. Runs use ctx, and cancelling ctx stops the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("schedule: already started")
	}

	c := cron.New(cron.WithLocation(s.location))
	if _, err := c.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule: add cron job: %w", err)
	}
	c.Start()
	s.cron = c

	s.logger.Info("schedule started",
		zap.String("cron", s.spec),
		zap.String("timezone", s.location.String()),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron schedule and waits for a cron-triggered run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("schedule stopped")
}

// Drain waits for an in-flight run to finish. Later RunNow calls return
// ErrDrained.
func (s *Scheduler) Drain() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.drained = true
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.RunNow(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Warn("skipping scheduled run; previous run still active")
	case errors.Is(err, ErrDrained):
		s.logger.Debug("skipping scheduled run; scheduler drained")
	case err != nil:
		s.logger.Error("scheduled run failed", zap.String("run_id", res.RunID), zap.Error(err))
	default:
		s.logger.Info("scheduled run finished",
			zap.String("run_id", res.RunID),
			zap.String("outcome", string(res.Outcome)),
		)
	}
}
