package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type NotificationType string

const (
	NotificationTypeInfo          NotificationType = "info"
	NotificationTypeWarning       NotificationType = "warning"
	NotificationTypeSuccess       NotificationType = "success"
	NotificationTypeError         NotificationType = "error"
	NotificationTypeWarrantyClaim NotificationType = "warranty_claim"
	NotificationTypeAppointment   NotificationType = "appointment"
	NotificationTypeMaintenance   NotificationType = "maintenance"
	NotificationTypeCampaign      NotificationType = "campaign"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeInfo, NotificationTypeWarning, NotificationTypeSuccess,
		NotificationTypeError, NotificationTypeWarrantyClaim,
		NotificationTypeAppointment, NotificationTypeMaintenance,
		NotificationTypeCampaign:
		return true
	}
	return false
}

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

func (p NotificationPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

type Notification struct {
	ID          uuid.UUID            `db:"id" json:"id"`
	RecipientID uuid.UUID            `db:"recipient_id" json:"recipient_id"`
	Title       string               `db:"title" json:"title"`
	Body        string               `db:"body" json:"body"`
	Type        NotificationType     `db:"type" json:"type"`
	Priority    NotificationPriority `db:"priority" json:"priority"`
	Channels    pq.StringArray       `db:"channels" json:"channels"`
	RelatedType *string              `db:"related_type" json:"related_type,omitempty"`
	RelatedID   *uuid.UUID           `db:"related_id" json:"related_id,omitempty"`
	ScheduledAt *time.Time           `db:"scheduled_at" json:"scheduled_at,omitempty"`
	ExpiresAt   *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	ReadAt      *time.Time           `db:"read_at" json:"read_at,omitempty"`
	Status      NotificationStatus   `db:"status" json:"status"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
}

// Due reports whether the notification should be dispatched immediately
// rather than held until its scheduled time.
func (n *Notification) Due(now time.Time) bool {
	return n.ScheduledAt == nil || !n.ScheduledAt.After(now)
}

type CreateNotificationRequest struct {
	RecipientID uuid.UUID  `json:"recipient_id" binding:"required"`
	Title       string     `json:"title" binding:"required,max=200"`
	Message     string     `json:"message" binding:"required"`
	Type        string     `json:"type" binding:"required"`
	Priority    string     `json:"priority"`
	Channels    []string   `json:"channels" binding:"omitempty,dive,notifchannel"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	RelatedType *string    `json:"related_type"`
	RelatedID   *uuid.UUID `json:"related_id"`
}

type NotificationFilters struct {
	Status     NotificationStatus
	Type       NotificationType
	UnreadOnly bool
}

type NotificationPage struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
	Page          int             `json:"page"`
	Limit         int             `json:"limit"`
	Total         int             `json:"total"`
}
