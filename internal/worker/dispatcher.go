package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	"github.com/evlink/warranty-notify/internal/service/campaign"
	"github.com/evlink/warranty-notify/internal/service/notification"
	"github.com/evlink/warranty-notify/internal/transport"
	"github.com/evlink/warranty-notify/pkg/logger"
	"github.com/evlink/warranty-notify/pkg/messaging"
	"github.com/evlink/warranty-notify/pkg/metrics"
)

type DispatcherConfig struct {
	BatchSize    int
	PollInterval time.Duration
	SendTimeout  time.Duration
}

// Dispatcher drives the queue to completion: claim a bounded batch, deliver
// each item through its channel's transport, record the outcome. Several
// instances may run concurrently; the only coordination between them is the
// queue's atomic claim.
type Dispatcher struct {
	queue         repository.QueueRepository
	transports    map[model.Channel]transport.Transport
	notifications notification.Service
	campaigns     campaign.Service
	broker        messaging.Broker
	config        DispatcherConfig
	logger        *logger.Logger
	metrics       *metrics.Metrics
}

func NewDispatcher(
	queue repository.QueueRepository,
	transports map[model.Channel]transport.Transport,
	notifications notification.Service,
	campaigns campaign.Service,
	broker messaging.Broker,
	config DispatcherConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 15 * time.Second
	}

	return &Dispatcher{
		queue:         queue,
		transports:    transports,
		notifications: notifications,
		campaigns:     campaigns,
		broker:        broker,
		config:        config,
		logger:        logger,
		metrics:       m,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		"batch_size", d.config.BatchSize,
		"poll_interval", d.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		case <-ticker.C:
			if err := d.ProcessBatch(ctx); err != nil {
				d.logger.Error(err, "failed to process queue batch")
			}
		}
	}
}

// ProcessBatch claims one batch and delivers every item in it. Items are
// independent: one item's failure never aborts the rest of the batch.
func (d *Dispatcher) ProcessBatch(ctx context.Context) error {
	items, err := d.queue.ClaimBatch(ctx, d.config.BatchSize)
	if err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.ClaimBatchSize.Observe(float64(len(items)))
	}
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		d.deliver(ctx, item)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, item *model.QueueItem) {
	var timer *prometheus.Timer
	if d.metrics != nil {
		timer = prometheus.NewTimer(d.metrics.DispatchLatency.WithLabelValues(string(item.Channel)))
		defer timer.ObserveDuration()
	}

	t, ok := d.transports[item.Channel]
	if !ok {
		// No transport configured for this channel; retrying won't help.
		d.recordFailure(ctx, item, "no transport for channel "+string(item.Channel), false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	receipt, err := t.Send(sendCtx, &transport.Message{
		Address:     item.RecipientAddress,
		Subject:     item.Subject,
		Body:        item.Body,
		RecipientID: item.RecipientID.String(),
	})
	if err != nil {
		d.recordFailure(ctx, item, err.Error(), transport.Retryable(err))
		return
	}

	if err := d.queue.Complete(ctx, item.ID, receipt.ProviderMessageID); err != nil {
		d.logger.Error(err, "failed to complete queue item", "queue_item_id", item.ID.String())
		return
	}
	if d.metrics != nil {
		d.metrics.ItemsProcessed.WithLabelValues(string(item.Channel)).Inc()
	}

	d.recordOutcome(ctx, item, model.OutcomeSent, "")
}

func (d *Dispatcher) recordFailure(ctx context.Context, item *model.QueueItem, errMsg string, retryable bool) {
	if err := d.queue.Fail(ctx, item.ID, errMsg, !retryable); err != nil {
		d.logger.Error(err, "failed to record delivery failure", "queue_item_id", item.ID.String())
		return
	}

	terminal := !retryable || item.Attempts+1 >= item.MaxAttempts
	if d.metrics != nil {
		if terminal {
			d.metrics.ItemsFailed.WithLabelValues(string(item.Channel)).Inc()
		} else {
			d.metrics.ItemsRetried.WithLabelValues(string(item.Channel)).Inc()
		}
	}

	d.logger.Warn("delivery attempt failed",
		"queue_item_id", item.ID.String(),
		"channel", string(item.Channel),
		"retryable", retryable,
		"error", errMsg)

	if terminal {
		d.recordOutcome(ctx, item, model.OutcomeFailed, errMsg)
	}
}

// recordOutcome propagates a terminal state to the owning notification or
// campaign and publishes a delivery event for downstream alerting. Hook
// failures are logged, not retried: the queue row already holds the truth.
func (d *Dispatcher) recordOutcome(ctx context.Context, item *model.QueueItem, outcome model.DeliveryOutcome, errMsg string) {
	if item.NotificationID != nil {
		if err := d.notifications.RecordDelivery(ctx, *item.NotificationID, item.Channel, outcome); err != nil {
			d.logger.Error(err, "failed to record notification delivery",
				"notification_id", item.NotificationID.String())
		}
	}
	if item.CampaignID != nil {
		if err := d.campaigns.RecordOutcome(ctx, *item.CampaignID, item.Channel, outcome); err != nil {
			d.logger.Error(err, "failed to record campaign outcome",
				"campaign_id", item.CampaignID.String())
		}
	}

	if d.broker != nil {
		event := &messaging.DeliveryEvent{
			QueueItemID: item.ID.String(),
			Channel:     string(item.Channel),
			Outcome:     string(outcome),
			Error:       errMsg,
		}
		if item.NotificationID != nil {
			event.NotificationID = item.NotificationID.String()
		}
		if item.CampaignID != nil {
			event.CampaignID = item.CampaignID.String()
		}
		if err := d.broker.Publish(ctx, messaging.ChannelDeliveryEvents, event); err != nil {
			d.logger.Error(err, "failed to publish delivery event",
				"queue_item_id", item.ID.String())
		}
	}
}
