package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"storybook/internal/domain"
	"storybook/internal/infra"
)

const (
	// DefaultTaskRetention is how long finished or abandoned tasks are kept.
	DefaultTaskRetention = 7 * 24 * time.Hour

	sweepTimeout     = 30 * time.Second
	sweepMinInterval = 10 * time.Minute
)

// Sweeper purges tasks older than the retention window. Trigger runs it in
// the background at most once at a time and never reports to the caller.
type Sweeper struct {
	tasks       domain.TaskRepository
	retention   time.Duration
	timeout     time.Duration
	minInterval time.Duration
	logger      infra.Logger
	now         func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	lastRun time.Time
	wg      sync.WaitGroup
}

func NewSweeper(tasks domain.TaskRepository, retention time.Duration, logger infra.Logger) *Sweeper {
	if retention <= 0 {
		retention = DefaultTaskRetention
	}
	return &Sweeper{
		tasks:       tasks,
		retention:   retention,
		timeout:     sweepTimeout,
		minInterval: sweepMinInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// Trigger starts a sweep in the background unless one is running or one
// ran within the minimum interval.
func (s *Sweeper) Trigger() {
	if s == nil {
		return
	}
	s.mu.Lock()
	recent := !s.lastRun.IsZero() && s.now().Sub(s.lastRun) < s.minInterval
	s.mu.Unlock()
	if recent || !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Msg("task sweep panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("task sweep failed")
		}
	}()
}

// Sweep deletes tasks created before now minus the retention window.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()

	cutoff := now.Add(-s.retention)
	n, err := s.tasks.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("stale tasks purged")
	}
	return n, nil
}

// Wait blocks until background sweeps have returned.
func (s *Sweeper) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}
