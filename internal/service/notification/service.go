package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	"github.com/evlink/warranty-notify/internal/service/recipient"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
	"github.com/evlink/warranty-notify/pkg/logger"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

type Service interface {
	Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, filters model.NotificationFilters, page, limit int) (*model.NotificationPage, error)
	MarkRead(ctx context.Context, id uuid.UUID) (alreadyRead bool, err error)
	RecordDelivery(ctx context.Context, notificationID uuid.UUID, channel model.Channel, outcome model.DeliveryOutcome) error
}

type service struct {
	repo     repository.NotificationRepository
	queue    repository.QueueRepository
	resolver *recipient.Resolver
	logger   *logger.Logger
}

func NewService(repo repository.NotificationRepository, queue repository.QueueRepository, resolver *recipient.Resolver, logger *logger.Logger) Service {
	return &service{
		repo:     repo,
		queue:    queue,
		resolver: resolver,
		logger:   logger,
	}
}

// Create validates and persists the notification, then fans out one queue row
// per requested channel the recipient has a usable address for. A channel with
// no address is skipped for that channel only.
func (s *service) Create(ctx context.Context, req *model.CreateNotificationRequest) (*model.Notification, error) {
	n, err := s.buildNotification(req)
	if err != nil {
		return nil, err
	}

	rcpt, err := s.resolver.Get(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	now := time.Now()
	scheduledAt := now
	if n.ScheduledAt != nil && n.ScheduledAt.After(now) {
		scheduledAt = *n.ScheduledAt
	}

	queued := 0
	for _, raw := range n.Channels {
		ch := model.Channel(raw)
		address, ok := rcpt.AddressFor(ch)
		if !ok {
			s.logger.Debug("skipping channel without address",
				"notification_id", n.ID.String(), "channel", string(ch))
			continue
		}

		item := &model.QueueItem{
			ID:               uuid.New(),
			NotificationID:   &n.ID,
			RecipientType:    "customer",
			RecipientID:      n.RecipientID,
			Channel:          ch,
			Subject:          n.Title,
			Body:             n.Body,
			RecipientAddress: address,
			Status:           model.QueueStatusPending,
			MaxAttempts:      model.DefaultMaxAttempts,
			ScheduledAt:      scheduledAt,
			CreatedAt:        now,
		}
		if err := s.queue.Enqueue(ctx, item); err != nil {
			return nil, err
		}
		queued++
	}

	s.logger.Info("notification created",
		"notification_id", n.ID.String(),
		"recipient_id", n.RecipientID.String(),
		"channels_queued", queued)

	return n, nil
}

func (s *service) buildNotification(req *model.CreateNotificationRequest) (*model.Notification, error) {
	if req.RecipientID == uuid.Nil {
		return nil, apperrors.Validation("recipient_id is required")
	}
	if req.Title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if req.Message == "" {
		return nil, apperrors.Validation("message is required")
	}

	ntype := model.NotificationType(req.Type)
	if !ntype.Valid() {
		return nil, apperrors.Validationf("invalid notification type %q", req.Type)
	}

	priority := model.PriorityMedium
	if req.Priority != "" {
		priority = model.NotificationPriority(req.Priority)
		if !priority.Valid() {
			return nil, apperrors.Validationf("invalid priority %q", req.Priority)
		}
	}

	channels := req.Channels
	if len(channels) == 0 {
		channels = []string{string(model.ChannelInApp)}
	}
	for _, raw := range channels {
		if !model.Channel(raw).Valid() {
			return nil, apperrors.Validationf("invalid channel %q", raw)
		}
	}

	now := time.Now()
	scheduledAt := req.ScheduledAt
	if scheduledAt != nil && scheduledAt.Before(now) {
		// Past schedules mean "due now".
		scheduledAt = nil
	}

	return &model.Notification{
		ID:          uuid.New(),
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Body:        req.Message,
		Type:        ntype,
		Priority:    priority,
		Channels:    channels,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
		ScheduledAt: scheduledAt,
		ExpiresAt:   req.ExpiresAt,
		Status:      model.NotificationStatusPending,
		CreatedAt:   now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) ListForRecipient(ctx context.Context, recipientID uuid.UUID, filters model.NotificationFilters, page, limit int) (*model.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	notifications, total, err := s.repo.ListForRecipient(ctx, recipientID, filters, page, limit)
	if err != nil {
		return nil, err
	}

	unread, err := s.repo.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	return &model.NotificationPage{
		Notifications: notifications,
		UnreadCount:   unread,
		Page:          page,
		Limit:         limit,
		Total:         total,
	}, nil
}

// MarkRead is idempotent: marking an already-read notification reports
// alreadyRead without touching read_at. A notification cannot be read before
// at least one of its channels reached sent.
func (s *service) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if n.ReadAt != nil {
		return true, nil
	}

	delivered, err := s.queue.HasSentForNotification(ctx, id)
	if err != nil {
		return false, err
	}
	if !delivered {
		return false, apperrors.Validation("notification has not been delivered yet")
	}

	updated, err := s.repo.MarkRead(ctx, id, time.Now())
	if err != nil {
		return false, err
	}
	// A lost race with another reader counts as already read.
	return !updated, nil
}

// RecordDelivery is the dispatcher's completion hook. The first terminal
// success on any channel flips the notification to sent.
func (s *service) RecordDelivery(ctx context.Context, notificationID uuid.UUID, channel model.Channel, outcome model.DeliveryOutcome) error {
	if outcome != model.OutcomeSent {
		return nil
	}
	if err := s.repo.MarkSent(ctx, notificationID); err != nil {
		return err
	}
	s.logger.Debug("delivery recorded",
		"notification_id", notificationID.String(), "channel", string(channel))
	return nil
}
