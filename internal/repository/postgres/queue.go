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

type queueRepository struct {
	*BaseRepository
}

func NewQueueRepository(db *sqlx.DB) repository.QueueRepository {
	return &queueRepository{BaseRepository: NewBaseRepository(db)}
}

const queueColumns = `id, notification_id, campaign_id, recipient_type, recipient_id,
	channel, subject, body, recipient_address, status, attempts, max_attempts,
	error_message, provider_message_id, scheduled_at, sent_at, last_attempt_at, created_at`

func (r *queueRepository) Enqueue(ctx context.Context, item *model.QueueItem) error {
	if item.NotificationID == nil && item.CampaignID == nil {
		return fmt.Errorf("queue item needs a notification or campaign reference")
	}

	// Campaign rows conflict on (campaign, recipient, channel), so re-running
	// an interrupted fan-out never duplicates a delivery.
	query := `
		INSERT INTO notification_queue (
			id, notification_id, campaign_id, recipient_type, recipient_id,
			channel, subject, body, recipient_address, status, attempts,
			max_attempts, scheduled_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (campaign_id, recipient_id, channel)
			WHERE campaign_id IS NOT NULL DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.NotificationID,
		item.CampaignID,
		item.RecipientType,
		item.RecipientID,
		item.Channel,
		item.Subject,
		item.Body,
		item.RecipientAddress,
		item.Status,
		item.Attempts,
		item.MaxAttempts,
		item.ScheduledAt,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}
	return nil
}

func (r *queueRepository) Get(ctx context.Context, id uuid.UUID) (*model.QueueItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM notification_queue WHERE id = $1`, queueColumns)

	var item model.QueueItem
	err := r.db.GetContext(ctx, &item, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("queue item", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return &item, nil
}

// ClaimBatch transitions up to limit due pending rows to processing and
// returns them, oldest schedule first. The claim is a single statement: the
// subselect locks candidate rows with SKIP LOCKED, so concurrent dispatchers
// partition the due set disjointly instead of double-claiming.
func (r *queueRepository) ClaimBatch(ctx context.Context, limit int) ([]*model.QueueItem, error) {
	query := fmt.Sprintf(`
		UPDATE notification_queue
		SET status = $1, last_attempt_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status = $2
			AND scheduled_at <= NOW()
			AND attempts < max_attempts
			ORDER BY scheduled_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, queueColumns)

	var items []*model.QueueItem
	err := r.db.SelectContext(ctx, &items, query,
		model.QueueStatusProcessing, model.QueueStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue batch: %w", err)
	}
	return items, nil
}

func (r *queueRepository) Complete(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	query := `
		UPDATE notification_queue
		SET status = $1, sent_at = COALESCE(sent_at, NOW()),
			provider_message_id = COALESCE(provider_message_id, $2),
			error_message = NULL
		WHERE id = $3 AND status IN ($4, $1)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusSent, providerMessageID, id, model.QueueStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete queue item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("queue item", nil)
	}
	return nil
}

// Fail increments the attempt count and either re-pends the row with backoff
// or moves it to terminal failed. A permanent failure burns the whole budget
// in one transition so unfixable addresses are not retried.
func (r *queueRepository) Fail(ctx context.Context, id uuid.UUID, errMsg string, permanent bool) error {
	if permanent {
		query := `
			UPDATE notification_queue
			SET status = $1, attempts = max_attempts, error_message = $2
			WHERE id = $3 AND status = $4
		`
		result, err := r.db.ExecContext(ctx, query,
			model.QueueStatusFailed, errMsg, id, model.QueueStatusProcessing)
		if err != nil {
			return fmt.Errorf("failed to record permanent failure: %w", err)
		}
		return checkAffected(result, "queue item")
	}

	// The row only leaves processing here, so read-then-write is safe: the
	// claiming worker is the sole owner until this transition runs.
	item, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != model.QueueStatusProcessing {
		return apperrors.NotFound("queue item", nil)
	}

	attempts := item.Attempts + 1
	if attempts >= item.MaxAttempts {
		query := `
			UPDATE notification_queue
			SET status = $1, attempts = $2, error_message = $3
			WHERE id = $4 AND status = $5
		`
		result, err := r.db.ExecContext(ctx, query,
			model.QueueStatusFailed, attempts, errMsg, id, model.QueueStatusProcessing)
		if err != nil {
			return fmt.Errorf("failed to record terminal failure: %w", err)
		}
		return checkAffected(result, "queue item")
	}

	query := `
		UPDATE notification_queue
		SET status = $1, attempts = $2, error_message = $3, scheduled_at = $4
		WHERE id = $5 AND status = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusPending, attempts, errMsg,
		time.Now().Add(model.RetryBackoff(attempts)), id, model.QueueStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	return checkAffected(result, "queue item")
}

func (r *queueRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notification_queue
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusCancelled, id, model.QueueStatusPending, model.QueueStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to cancel queue item: %w", err)
	}
	return checkAffected(result, "queue item")
}

func (r *queueRepository) CancelForCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = $1
		WHERE campaign_id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusCancelled, campaignID, model.QueueStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel campaign queue items: %w", err)
	}
	return result.RowsAffected()
}

// RetrySweep is the administrative escape hatch: failed rows with budget left
// go straight back to pending, bypassing the per-item backoff.
func (r *queueRepository) RetrySweep(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = $1, scheduled_at = NOW(), error_message = NULL
		WHERE status = $2
		AND attempts < max_attempts
		AND last_attempt_at < $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusPending, model.QueueStatusFailed, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep failed queue items: %w", err)
	}
	return result.RowsAffected()
}

// ReclaimStuck returns rows stranded in processing (a dispatcher crashed
// between claim and completion) to pending once they are older than the
// staleness window.
func (r *queueRepository) ReclaimStuck(ctx context.Context, stuckAfter time.Duration) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = $1
		WHERE status = $2
		AND last_attempt_at < $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusPending, model.QueueStatusProcessing, time.Now().Add(-stuckAfter))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck queue items: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) PurgeTerminal(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM notification_queue
		WHERE status IN ($1, $2, $3)
		AND COALESCE(sent_at, last_attempt_at, created_at) < $4
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusSent, model.QueueStatusFailed, model.QueueStatusCancelled,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to purge terminal queue items: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) PendingCount(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notification_queue WHERE status = $1`
	if err := r.db.GetContext(ctx, &count, query, model.QueueStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending queue items: %w", err)
	}
	return count, nil
}

func (r *queueRepository) HasSentForNotification(ctx context.Context, notificationID uuid.UUID) (bool, error) {
	var sent bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_queue
			WHERE notification_id = $1 AND status = $2
		)
	`
	if err := r.db.GetContext(ctx, &sent, query, notificationID, model.QueueStatusSent); err != nil {
		return false, fmt.Errorf("failed to check delivered rows: %w", err)
	}
	return sent, nil
}

func (r *queueRepository) NonTerminalCountForCampaign(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM notification_queue
		WHERE campaign_id = $1 AND status IN ($2, $3)
	`
	err := r.db.GetContext(ctx, &count, query, campaignID,
		model.QueueStatusPending, model.QueueStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to count campaign queue items: %w", err)
	}
	return count, nil
}

func (r *queueRepository) ChannelMetricsForCampaign(ctx context.Context, campaignID uuid.UUID) (map[model.Channel]*model.ChannelMetrics, error) {
	query := `
		SELECT channel,
			COUNT(*) AS queued,
			COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM notification_queue
		WHERE campaign_id = $1
		GROUP BY channel
	`
	rows, err := r.db.QueryxContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign channel metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[model.Channel]*model.ChannelMetrics)
	for rows.Next() {
		var channel model.Channel
		var m model.ChannelMetrics
		if err := rows.Scan(&channel, &m.Queued, &m.Sent, &m.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan channel metrics: %w", err)
		}
		metrics[channel] = &m
	}
	return metrics, rows.Err()
}

func (r *queueRepository) RecentErrorsForCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]*model.QueueError, error) {
	query := `
		SELECT channel, error_message, last_attempt_at
		FROM notification_queue
		WHERE campaign_id = $1
		AND status = $2
		AND error_message IS NOT NULL
		ORDER BY last_attempt_at DESC
		LIMIT $3
	`
	var errs []*model.QueueError
	err := r.db.SelectContext(ctx, &errs, query, campaignID, model.QueueStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign errors: %w", err)
	}
	return errs, nil
}

func checkAffected(result sql.Result, resource string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(resource, nil)
	}
	return nil
}
