package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lokapos/agent/internal/connectivity"
	"lokapos/agent/internal/syncengine"
)

// Scheduler funnels the two sync triggers into the engine's single-flight
// guard: a fixed-interval cron tick while online, and an immediate trigger on
// every reconnect.
type Scheduler struct {
	cron        *cron.Cron
	engine      *syncengine.Engine
	monitor     *connectivity.Monitor
	interval    time.Duration
	logger      *zap.Logger
	unsubscribe func()
}

func New(engine *syncengine.Engine, monitor *connectivity.Monitor, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		engine:   engine,
		monitor:  monitor,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("schedule periodic sync: %w", err)
	}
	s.unsubscribe = s.monitor.Subscribe(s.onConnectivityChange)
	s.cron.Start()
	s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop prevents future ticks and reconnect triggers. A cycle already in
// flight runs to completion on its own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.logger.Info("sync scheduler stopped")
}

func (s *Scheduler) tick() {
	if !s.monitor.IsOnline() {
		s.logger.Debug("periodic tick skipped while offline")
		return
	}
	s.runSync("periodic")
}

func (s *Scheduler) onConnectivityChange(online bool) {
	if !online {
		return
	}
	go s.runSync("reconnect")
}

func (s *Scheduler) runSync(trigger string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	report, err := s.engine.TrySync(ctx)
	if err != nil {
		if errors.Is(err, syncengine.ErrSyncInProgress) {
			s.logger.Debug("sync trigger rejected, cycle in flight", zap.String("trigger", trigger))
			return
		}
		s.logger.Warn("sync trigger failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	if !report.Success {
		s.logger.Info("sync cycle ended without success", zap.String("trigger", trigger), zap.String("error", report.Error))
	}
}
