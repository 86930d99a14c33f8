package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/essay-review-api/internal/models"
)

type overdueExpirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type capacityResyncer interface {
	Resync(ctx context.Context) ([]models.LevelCapacity, error)
}

// ExpirySweeper periodically expires overdue orders and repairs level counters,
// so slots are reclaimed even when nobody reads the orders.
type ExpirySweeper struct {
	orders   overdueExpirer
	capacity capacityResyncer
	metrics  *MetricsService
	logger   *zap.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

// NewExpirySweeper creates the sweeper. A non-positive interval defaults to one minute.
func NewExpirySweeper(orders overdueExpirer, capacity capacityResyncer, metrics *MetricsService, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{
		orders:   orders,
		capacity: capacity,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.logger.Info("starting expiry sweeper", zap.Duration("interval", s.interval))
	s.done.Add(1)
	go s.run(ctx)
}

// Stop signals the loop to exit and waits for the running sweep.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping expiry sweeper")
		close(s.stopChan)
	})
	s.done.Wait()
}

func (s *ExpirySweeper) run(ctx context.Context) {
	defer s.done.Done()
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("expiry sweeper cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep.
func (s *ExpirySweeper) RunOnce(ctx context.Context) {
	start := time.Now()
	expired, err := s.orders.ExpireOverdue(ctx)
	if err != nil {
		s.metrics.RecordSweep("error")
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}

	corrected, err := s.capacity.Resync(ctx)
	if err != nil {
		s.metrics.RecordSweep("error")
		s.logger.Error("capacity resync failed", zap.Error(err))
		return
	}

	s.metrics.RecordSweep("ok")
	if expired > 0 || len(corrected) > 0 {
		s.logger.Info("expiry sweep finished",
			zap.Int("expired", expired),
			zap.Int("levels_corrected", len(corrected)),
			zap.Duration("took", time.Since(start)))
	}
}
