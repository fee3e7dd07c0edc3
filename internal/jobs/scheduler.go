// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionSweeper deletes expired sessions.
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Pruner drops idle in-memory working sets.
type Pruner interface {
	Prune(idle time.Duration) int
}

// ExpirySweeper drops expired cache entries.
type ExpirySweeper interface {
	Sweep() int
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		logger:  logger,
		timeout: time.Minute,
	}
}

// SweepSessions schedules expired session deletion.
func (s *Scheduler) SweepSessions(spec string, sweeper SessionSweeper) error {
	_, err := s.cron.AddFunc(spec, func() { s.sweepSessions(sweeper) })
	if err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) sweepSessions(sweeper SessionSweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := sweeper.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions deleted", zap.Int64("count", n))
	}
}

// PruneWorkingSets schedules dropping working sets unused for idle.
func (s *Scheduler) PruneWorkingSets(spec string, p Pruner, idle time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		if n := p.Prune(idle); n > 0 {
			s.logger.Debug("idle working sets dropped", zap.Int("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule working set prune %q: %w", spec, err)
	}
	return nil
}

// SweepRoleCache schedules dropping expired entries from a local role cache.
func (s *Scheduler) SweepRoleCache(spec string, c ExpirySweeper) error {
	_, err := s.cron.AddFunc(spec, func() {
		if n := c.Sweep(); n > 0 {
			s.logger.Debug("expired roles dropped", zap.Int("count", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule role cache sweep %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown")
	}
}
