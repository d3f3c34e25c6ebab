// Package scheduler owns the periodic maintenance-check loop and the daily
// usage rollup job.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"equipment-pm-backend/config"
	"equipment-pm-backend/internal/alert"
	"equipment-pm-backend/internal/store"
)

// Service drives the alert engine on a fixed cadence: once shortly after
// startup, then once per configured interval, plus on-demand triggers.
// Passes never overlap; see TriggerNow.
type Service struct {
	cfg    *config.SchedulerConfig
	engine *alert.Engine
	store  store.Store
	logger *logrus.Logger

	// inFlight serializes passes across the loop and manual triggers.
	inFlight atomic.Bool
}

// NewService creates the scheduler service.
func NewService(cfg *config.SchedulerConfig, engine *alert.Engine, s store.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		cfg:    cfg,
		engine: engine,
		store:  s,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled, executing the startup pass after the
// configured delay and one pass per interval thereafter. The daily rollup
// job runs on its own goroutine.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled, not starting")
		return
	}
	s.logger.WithField("interval", s.cfg.Interval.String()).Info("starting maintenance scheduler")

	go s.runRollupLoop(ctx)

	// Give dependent services time to come up before the first pass.
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.cfg.StartupDelay):
	}
	s.runGuarded(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler shutting down")
			return
		case <-timer.C:
			s.runGuarded(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// TriggerNow runs one pass on demand. When a pass is already in flight the
// call is a no-op and returns skipped=true rather than queueing; the caller
// can simply retry once the running pass finishes.
func (s *Service) TriggerNow(ctx context.Context) (summary *alert.PassSummary, skipped bool, err error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, true, nil
	}
	defer s.inFlight.Store(false)

	summary, err = s.engine.RunPass(ctx)
	return summary, false, err
}

// InFlight reports whether a pass is currently running.
func (s *Service) InFlight() bool {
	return s.inFlight.Load()
}

func (s *Service) runGuarded(ctx context.Context) {
	_, skipped, err := s.TriggerNow(ctx)
	if skipped {
		s.logger.Warn("skipping scheduled pass, previous pass still running")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("scheduled maintenance pass failed")
	}
}

// runRollupLoop fires the daily usage rollup at the configured wall-clock
// time, recomputing the next occurrence after each run so the cadence does
// not drift. A failed rollup only logs; the next day's run is always
// scheduled.
func (s *Service) runRollupLoop(ctx context.Context) {
	loc := s.cfg.Location()
	s.logger.WithField("timezone", loc.String()).Info("usage rollup timezone resolved")

	for {
		next := NextRollupTime(time.Now().In(loc), s.cfg.RollupHour, s.cfg.RollupMinute)
		s.logger.WithField("next", next.Format(time.RFC3339)).Info("next usage rollup scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		if err := s.RollupPreviousDay(ctx, loc); err != nil {
			s.logger.WithError(err).Error("daily usage rollup failed")
		}
	}
}

// RollupPreviousDay aggregates the previous local calendar day's raw
// readings into the daily usage log.
func (s *Service) RollupPreviousDay(ctx context.Context, loc *time.Location) error {
	now := time.Now().In(loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayStart := todayStart.AddDate(0, 0, -1)

	written, err := s.store.RollupDailyUsage(ctx, dayStart, todayStart)
	if err != nil {
		return fmt.Errorf("rollup for %s: %w", dayStart.Format("2006-01-02"), err)
	}
	s.logger.WithFields(logrus.Fields{
		"day":     dayStart.Format("2006-01-02"),
		"written": written,
	}).Info("daily usage rollup complete")
	return nil
}

// NextRollupTime returns the next occurrence of hour:minute strictly after
// now, in now's location.
func NextRollupTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
