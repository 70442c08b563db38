package worker

import (
	"context"
	"time"

	"github.com/evlink/warranty-notify/internal/repository"
	"github.com/evlink/warranty-notify/pkg/logger"
	"github.com/evlink/warranty-notify/pkg/metrics"
)

type JanitorConfig struct {
	Interval      time.Duration
	StuckAfter    time.Duration
	RetentionDays int
	RetrySweepAge time.Duration
}

// Janitor keeps the queue healthy: rows stranded in processing by a crashed
// dispatcher go back to pending, failed rows with budget left get an
// administrative retry, and terminal rows past retention are purged.
type Janitor struct {
	queue   repository.QueueRepository
	config  JanitorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewJanitor(queue repository.QueueRepository, config JanitorConfig, logger *logger.Logger, m *metrics.Metrics) *Janitor {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.StuckAfter <= 0 {
		config.StuckAfter = 10 * time.Minute
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 30
	}
	if config.RetrySweepAge <= 0 {
		config.RetrySweepAge = 6 * time.Hour
	}

	return &Janitor{
		queue:   queue,
		config:  config,
		logger:  logger,
		metrics: m,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.config.Interval.String())

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor shutting down")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	reclaimed, err := j.queue.ReclaimStuck(ctx, j.config.StuckAfter)
	if err != nil {
		j.logger.Error(err, "failed to reclaim stuck queue items")
	} else if reclaimed > 0 {
		j.logger.Warn("reclaimed stuck queue items", "count", reclaimed)
	}

	retried, err := j.queue.RetrySweep(ctx, j.config.RetrySweepAge)
	if err != nil {
		j.logger.Error(err, "failed to sweep failed queue items")
	} else if retried > 0 {
		j.logger.Info("requeued failed items for retry", "count", retried)
	}

	purged, err := j.queue.PurgeTerminal(ctx, time.Duration(j.config.RetentionDays)*24*time.Hour)
	if err != nil {
		j.logger.Error(err, "failed to purge terminal queue items")
	} else if purged > 0 {
		j.logger.Info("purged terminal queue items", "count", purged)
	}

	if j.metrics != nil {
		if depth, err := j.queue.PendingCount(ctx); err == nil {
			j.metrics.QueueDepth.Set(float64(depth))
		}
	}
}
