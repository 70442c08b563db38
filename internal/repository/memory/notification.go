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

type NotificationRepository struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*model.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[uuid.UUID]*model.Notification)}
}

var _ repository.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *n
	r.notifications[n.ID] = &clone
	return nil
}

func (r *NotificationRepository) Get(_ context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	clone := *n
	return &clone, nil
}

func (r *NotificationRepository) ListForRecipient(_ context.Context, recipientID uuid.UUID, filters model.NotificationFilters, page, limit int) ([]*model.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var matched []*model.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if n.ExpiresAt != nil && n.ExpiresAt.Before(now) {
			continue
		}
		if filters.Status != "" && n.Status != filters.Status {
			continue
		}
		if filters.Type != "" && n.Type != filters.Type {
			continue
		}
		if filters.UnreadOnly && n.ReadAt != nil {
			continue
		}
		clone := *n
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *NotificationRepository) UnreadCount(_ context.Context, recipientID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && n.ReadAt == nil &&
			(n.ExpiresAt == nil || n.ExpiresAt.After(now)) {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id uuid.UUID, readAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.ReadAt != nil {
		return false, nil
	}
	n.ReadAt = &readAt
	return true, nil
}

func (r *NotificationRepository) MarkSent(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok {
		return apperrors.NotFound("notification", nil)
	}
	if n.Status == model.NotificationStatusPending {
		n.Status = model.NotificationStatusSent
	}
	return nil
}
