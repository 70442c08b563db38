package model

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "in_app"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelInApp:
		return true
	}
	return false
}

type QueueStatus string

const (
	QueueStatusPending    QueueStatus = "pending"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSent       QueueStatus = "sent"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusCancelled  QueueStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusSent || s == QueueStatusFailed || s == QueueStatusCancelled
}

const (
	DefaultMaxAttempts = 3

	retryBackoffBase = 30 * time.Second
	retryBackoffCap  = 30 * time.Minute
)

// RetryBackoff returns the delay before the next attempt after the given
// number of completed attempts: base * 2^attempts, capped. The delay never
// decreases between consecutive attempts.
func RetryBackoff(attempts int) time.Duration {
	d := retryBackoffBase
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= retryBackoffCap {
			return retryBackoffCap
		}
	}
	return d
}

// QueueItem is one delivery attempt for one (notification-or-campaign, channel)
// pair. Rows are created by fan-out and mutated only through the queue
// repository's claim/complete/fail operations.
type QueueItem struct {
	ID                uuid.UUID   `db:"id" json:"id"`
	NotificationID    *uuid.UUID  `db:"notification_id" json:"notification_id,omitempty"`
	CampaignID        *uuid.UUID  `db:"campaign_id" json:"campaign_id,omitempty"`
	RecipientType     string      `db:"recipient_type" json:"recipient_type"`
	RecipientID       uuid.UUID   `db:"recipient_id" json:"recipient_id"`
	Channel           Channel     `db:"channel" json:"channel"`
	Subject           string      `db:"subject" json:"subject"`
	Body              string      `db:"body" json:"body"`
	RecipientAddress  string      `db:"recipient_address" json:"recipient_address"`
	Status            QueueStatus `db:"status" json:"status"`
	Attempts          int         `db:"attempts" json:"attempts"`
	MaxAttempts       int         `db:"max_attempts" json:"max_attempts"`
	ErrorMessage      *string     `db:"error_message" json:"error_message,omitempty"`
	ProviderMessageID *string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	ScheduledAt       time.Time   `db:"scheduled_at" json:"scheduled_at"`
	SentAt            *time.Time  `db:"sent_at" json:"sent_at,omitempty"`
	LastAttemptAt     *time.Time  `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
}

type QueueError struct {
	Channel      Channel   `db:"channel" json:"channel"`
	ErrorMessage string    `db:"error_message" json:"error_message"`
	OccurredAt   time.Time `db:"last_attempt_at" json:"occurred_at"`
}
