// Package memory provides in-memory repository implementations with the same
// transition semantics as the postgres ones. They back the service and worker
// tests and keep the claim/retry contract executable without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type QueueRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*model.QueueItem
}

func NewQueueRepository() *QueueRepository {
	return &QueueRepository{items: make(map[uuid.UUID]*model.QueueItem)}
}

var _ repository.QueueRepository = (*QueueRepository)(nil)

func (r *QueueRepository) Enqueue(_ context.Context, item *model.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Campaign rows are unique per (campaign, recipient, channel); re-running
	// a fan-out skips rows that already exist.
	if item.CampaignID != nil {
		for _, existing := range r.items {
			if existing.CampaignID != nil && *existing.CampaignID == *item.CampaignID &&
				existing.RecipientID == item.RecipientID &&
				existing.Channel == item.Channel {
				return nil
			}
		}
	}

	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *QueueRepository) Get(_ context.Context, id uuid.UUID) (*model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, apperrors.NotFound("queue item", nil)
	}
	clone := *item
	return &clone, nil
}

func (r *QueueRepository) ClaimBatch(_ context.Context, limit int) ([]*model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var due []*model.QueueItem
	for _, item := range r.items {
		if item.Status == model.QueueStatusPending &&
			!item.ScheduledAt.After(now) &&
			item.Attempts < item.MaxAttempts {
			due = append(due, item)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*model.QueueItem, 0, len(due))
	for _, item := range due {
		item.Status = model.QueueStatusProcessing
		at := now
		item.LastAttemptAt = &at
		clone := *item
		claimed = append(claimed, &clone)
	}
	return claimed, nil
}

func (r *QueueRepository) Complete(_ context.Context, id uuid.UUID, providerMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return apperrors.NotFound("queue item", nil)
	}
	if item.Status == model.QueueStatusSent {
		return nil
	}
	if item.Status != model.QueueStatusProcessing {
		return apperrors.NotFound("queue item", nil)
	}
	item.Status = model.QueueStatusSent
	now := time.Now()
	item.SentAt = &now
	item.ProviderMessageID = &providerMessageID
	item.ErrorMessage = nil
	return nil
}

func (r *QueueRepository) Fail(_ context.Context, id uuid.UUID, errMsg string, permanent bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return apperrors.NotFound("queue item", nil)
	}
	if item.Status != model.QueueStatusProcessing {
		return apperrors.NotFound("queue item", nil)
	}

	item.ErrorMessage = &errMsg
	if permanent {
		item.Attempts = item.MaxAttempts
		item.Status = model.QueueStatusFailed
		return nil
	}

	item.Attempts++
	if item.Attempts >= item.MaxAttempts {
		item.Status = model.QueueStatusFailed
		return nil
	}
	item.Status = model.QueueStatusPending
	item.ScheduledAt = time.Now().Add(model.RetryBackoff(item.Attempts))
	return nil
}

func (r *QueueRepository) Cancel(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return apperrors.NotFound("queue item", nil)
	}
	if item.Status != model.QueueStatusPending && item.Status != model.QueueStatusFailed {
		return apperrors.NotFound("queue item", nil)
	}
	item.Status = model.QueueStatusCancelled
	return nil
}

func (r *QueueRepository) CancelForCampaign(_ context.Context, campaignID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, item := range r.items {
		if item.CampaignID != nil && *item.CampaignID == campaignID &&
			item.Status == model.QueueStatusPending {
			item.Status = model.QueueStatusCancelled
			n++
		}
	}
	return n, nil
}

func (r *QueueRepository) RetrySweep(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var n int64
	for _, item := range r.items {
		if item.Status == model.QueueStatusFailed &&
			item.Attempts < item.MaxAttempts &&
			item.LastAttemptAt != nil && item.LastAttemptAt.Before(cutoff) {
			item.Status = model.QueueStatusPending
			item.ScheduledAt = time.Now()
			item.ErrorMessage = nil
			n++
		}
	}
	return n, nil
}

func (r *QueueRepository) ReclaimStuck(_ context.Context, stuckAfter time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-stuckAfter)
	var n int64
	for _, item := range r.items {
		if item.Status == model.QueueStatusProcessing &&
			item.LastAttemptAt != nil && item.LastAttemptAt.Before(cutoff) {
			item.Status = model.QueueStatusPending
			n++
		}
	}
	return n, nil
}

func (r *QueueRepository) PurgeTerminal(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var n int64
	for id, item := range r.items {
		if !item.Status.Terminal() {
			continue
		}
		ref := item.CreatedAt
		if item.SentAt != nil {
			ref = *item.SentAt
		} else if item.LastAttemptAt != nil {
			ref = *item.LastAttemptAt
		}
		if ref.Before(cutoff) {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *QueueRepository) PendingCount(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, item := range r.items {
		if item.Status == model.QueueStatusPending {
			count++
		}
	}
	return count, nil
}

func (r *QueueRepository) HasSentForNotification(_ context.Context, notificationID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range r.items {
		if item.NotificationID != nil && *item.NotificationID == notificationID &&
			item.Status == model.QueueStatusSent {
			return true, nil
		}
	}
	return false, nil
}

func (r *QueueRepository) NonTerminalCountForCampaign(_ context.Context, campaignID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, item := range r.items {
		if item.CampaignID != nil && *item.CampaignID == campaignID && !item.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (r *QueueRepository) ChannelMetricsForCampaign(_ context.Context, campaignID uuid.UUID) (map[model.Channel]*model.ChannelMetrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics := make(map[model.Channel]*model.ChannelMetrics)
	for _, item := range r.items {
		if item.CampaignID == nil || *item.CampaignID != campaignID {
			continue
		}
		m, ok := metrics[item.Channel]
		if !ok {
			m = &model.ChannelMetrics{}
			metrics[item.Channel] = m
		}
		m.Queued++
		switch item.Status {
		case model.QueueStatusSent:
			m.Sent++
		case model.QueueStatusFailed:
			m.Failed++
		}
	}
	return metrics, nil
}

func (r *QueueRepository) RecentErrorsForCampaign(_ context.Context, campaignID uuid.UUID, limit int) ([]*model.QueueError, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []*model.QueueError
	for _, item := range r.items {
		if item.CampaignID == nil || *item.CampaignID != campaignID {
			continue
		}
		if item.Status == model.QueueStatusFailed && item.ErrorMessage != nil {
			at := time.Time{}
			if item.LastAttemptAt != nil {
				at = *item.LastAttemptAt
			}
			errs = append(errs, &model.QueueError{
				Channel:      item.Channel,
				ErrorMessage: *item.ErrorMessage,
				OccurredAt:   at,
			})
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].OccurredAt.After(errs[j].OccurredAt) })
	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs, nil
}

// ForceDue rewinds a row's schedule so tests don't have to wait out backoff.
func (r *QueueRepository) ForceDue(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[id]; ok {
		item.ScheduledAt = time.Now().Add(-time.Second)
	}
}

// ForceLastAttempt backdates a row's last attempt, for stuck-claim tests.
func (r *QueueRepository) ForceLastAttempt(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[id]; ok {
		item.LastAttemptAt = &at
	}
}

// Items returns a snapshot of all rows, for assertions.
func (r *QueueRepository) Items() []*model.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]*model.QueueItem, 0, len(r.items))
	for _, item := range r.items {
		clone := *item
		items = append(items, &clone)
	}
	return items
}
