package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type notificationRepository struct {
	*BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient_id, title, body, type, priority, channels,
			related_type, related_id, scheduled_at, expires_at, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.Title,
		n.Body,
		n.Type,
		n.Priority,
		n.Channels,
		n.RelatedType,
		n.RelatedID,
		n.ScheduledAt,
		n.ExpiresAt,
		n.Status,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `
		SELECT id, recipient_id, title, body, type, priority, channels,
			   related_type, related_id, scheduled_at, expires_at, read_at,
			   status, created_at
		FROM notifications
		WHERE id = $1
	`
	var n model.Notification
	err := r.db.GetContext(ctx, &n, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("notification", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID uuid.UUID, filters model.NotificationFilters, page, limit int) ([]*model.Notification, int, error) {
	where := `WHERE recipient_id = $1
		AND (expires_at IS NULL OR expires_at > NOW())`
	args := []interface{}{recipientID}

	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.Type != "" {
		args = append(args, filters.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filters.UnreadOnly {
		where += " AND read_at IS NULL"
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications " + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`
		SELECT id, recipient_id, title, body, type, priority, channels,
			   related_type, related_id, scheduled_at, expires_at, read_at,
			   status, created_at
		FROM notifications
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_id = $1
		AND read_at IS NULL
		AND (expires_at IS NULL OR expires_at > NOW())
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, recipientID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead sets read_at if it is not already set. Returns false when the row
// was already read (or raced with another reader).
func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, readAt time.Time) (bool, error) {
	query := `
		UPDATE notifications
		SET read_at = $1
		WHERE id = $2 AND read_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, readAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = $1
		WHERE id = $2 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, model.NotificationStatusSent, id, model.NotificationStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}
