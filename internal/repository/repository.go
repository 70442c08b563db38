package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, filters model.NotificationFilters, page, limit int) ([]*model.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// QueueRepository owns every status transition of queue rows. No other code
// path writes queue item state.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *model.QueueItem) error
	Get(ctx context.Context, id uuid.UUID) (*model.QueueItem, error)

	// ClaimBatch atomically moves up to limit due pending rows to processing
	// and returns them. Concurrent callers never receive the same row.
	ClaimBatch(ctx context.Context, limit int) ([]*model.QueueItem, error)

	// Complete moves processing -> sent. Idempotent if the row is already sent.
	Complete(ctx context.Context, id uuid.UUID, providerMessageID string) error

	// Fail records a delivery failure. Permanent failures exhaust the attempt
	// budget immediately; transient ones re-pend with backoff until the budget
	// runs out.
	Fail(ctx context.Context, id uuid.UUID, errMsg string, permanent bool) error

	Cancel(ctx context.Context, id uuid.UUID) error
	CancelForCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)

	RetrySweep(ctx context.Context, olderThan time.Duration) (int64, error)
	ReclaimStuck(ctx context.Context, stuckAfter time.Duration) (int64, error)
	PurgeTerminal(ctx context.Context, olderThan time.Duration) (int64, error)

	PendingCount(ctx context.Context) (int, error)

	// HasSentForNotification reports whether at least one queue row for the
	// notification reached sent. Gates mark-read: a notification cannot be
	// read before anything was delivered on it.
	HasSentForNotification(ctx context.Context, notificationID uuid.UUID) (bool, error)

	NonTerminalCountForCampaign(ctx context.Context, campaignID uuid.UUID) (int, error)
	ChannelMetricsForCampaign(ctx context.Context, campaignID uuid.UUID) (map[model.Channel]*model.ChannelMetrics, error)
	RecentErrorsForCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.QueueError, error)
}

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []model.CampaignStatus, to model.CampaignStatus) error
	SetLaunched(ctx context.Context, id uuid.UUID, actualRecipients int) error
	SetCompleted(ctx context.Context, id uuid.UUID) error

	// IncrementCounter bumps one of the campaign's outcome counters with an
	// atomic SQL increment, never read-modify-write.
	IncrementCounter(ctx context.Context, id uuid.UUID, counter string, delta int) error
}

type RecipientRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error)
	FindByCriteria(ctx context.Context, criteria model.TargetCriteria) ([]*model.Recipient, error)
	CountByCriteria(ctx context.Context, criteria model.TargetCriteria) (int, error)
}
