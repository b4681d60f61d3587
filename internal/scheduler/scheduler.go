// Package scheduler decides when a sync pass runs: app cold start,
// foreground transitions, and a periodic timer.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/syncclient"
)

// Runner is the sync surface the scheduler drives. *syncclient.Client
// implements it.
type Runner interface {
	SyncNow(ctx context.Context) error
	ForceFullSync(ctx context.Context) error
	Ready() bool
}

type Config struct {
	Interval time.Duration // periodic trigger cadence
	Cooldown time.Duration // suppress triggers this soon after the last pass
}

func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Minute,
		Cooldown: 30 * time.Second,
	}
}

type Scheduler struct {
	runner Runner
	logger *logrus.Logger
	cfg    Config

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	lastPass  time.Time
}

func New(runner Runner, cfg Config, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Scheduler{
		runner: runner,
		logger: logger,
		cfg:    cfg,
	}
}

// Start fires a cold-start pass and begins the periodic loop. Calling Start
// twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	// Fresh channel per run so the scheduler can be started again after Stop.
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	s.Trigger(ctx)

	s.wg.Add(1)
	go s.loop(ctx, stop)

	s.logger.Info("sync scheduler started")
}

// Stop halts the periodic loop. An in-flight pass is not cancelled; it runs
// to completion or failure.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stop := s.stopCh
	s.mu.Unlock()

	close(stop)
	s.wg.Wait()

	s.logger.Info("sync scheduler stopped")
}

// OnForeground is called by the app shell when it returns to the foreground.
func (s *Scheduler) OnForeground(ctx context.Context) {
	s.Trigger(ctx)
}

// Trigger requests a pass now. It no-ops when unauthenticated, when the
// previous pass completed inside the cooldown window, or when a pass is
// already in flight.
func (s *Scheduler) Trigger(ctx context.Context) {
	if !s.runner.Ready() {
		s.logger.Debug("sync trigger skipped: not authenticated")
		return
	}

	s.mu.Lock()
	if !s.lastPass.IsZero() && time.Since(s.lastPass) < s.cfg.Cooldown {
		s.mu.Unlock()
		s.logger.Debug("sync trigger skipped: cooldown")
		return
	}
	s.mu.Unlock()

	s.run(ctx, s.runner.SyncNow)
}

// ForceFullSync clears the watermark and bootstraps, bypassing the cooldown.
// This is the repair path for suspected stale local state.
func (s *Scheduler) ForceFullSync(ctx context.Context) {
	if !s.runner.Ready() {
		s.logger.Debug("force full sync skipped: not authenticated")
		return
	}
	s.run(ctx, s.runner.ForceFullSync)
}

func (s *Scheduler) run(ctx context.Context, pass func(context.Context) error) {
	err := pass(ctx)
	switch {
	case err == nil:
	case errors.Is(err, syncclient.ErrSyncInFlight):
		// A running pass covers this trigger.
		return
	case errors.Is(err, syncclient.ErrNotAuthenticated):
		return
	default:
		s.logger.WithError(err).Warn("sync pass failed")
	}

	s.mu.Lock()
	s.lastPass = time.Now()
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Trigger(ctx)
		}
	}
}
