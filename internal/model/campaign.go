package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// TargetCriteria is the targeting predicate a campaign is launched with. The
// queue never interprets it; only the recipient repository does, once, at
// launch time (the recipient set is a snapshot, not re-evaluated later).
type TargetCriteria struct {
	Region                     string `json:"region,omitempty"`
	VehicleModel               string `json:"vehicle_model,omitempty"`
	WarrantyExpiringWithinDays int    `json:"warranty_expiring_within_days,omitempty"`
}

type Campaign struct {
	ID                  uuid.UUID      `db:"id" json:"id"`
	Name                string         `db:"name" json:"name"`
	Type                string         `db:"type" json:"type"`
	Title               string         `db:"title" json:"title"`
	Body                string         `db:"body" json:"body"`
	Criteria            TargetCriteria `db:"-" json:"target_criteria"`
	CriteriaRaw         []byte         `db:"criteria" json:"-"`
	Channels            pq.StringArray `db:"channels" json:"channels"`
	Priority            string         `db:"priority" json:"priority"`
	EstimatedRecipients int            `db:"estimated_recipients" json:"estimated_recipients"`
	ActualRecipients    int            `db:"actual_recipients" json:"actual_recipients"`
	SentCount           int            `db:"sent_count" json:"sent_count"`
	DeliveredCount      int            `db:"delivered_count" json:"delivered_count"`
	OpenedCount         int            `db:"opened_count" json:"opened_count"`
	ClickedCount        int            `db:"clicked_count" json:"clicked_count"`
	FailedCount         int            `db:"failed_count" json:"failed_count"`
	Status              CampaignStatus `db:"status" json:"status"`
	CreatedBy           uuid.UUID      `db:"created_by" json:"created_by"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
	LaunchedAt          *time.Time     `db:"launched_at" json:"launched_at,omitempty"`
	CompletedAt         *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

type CreateCampaignRequest struct {
	Name             string         `json:"name" binding:"required,max=200"`
	Type             string         `json:"type" binding:"required"`
	Title            string         `json:"title" binding:"required,max=200"`
	Message          string         `json:"message" binding:"required"`
	TargetCriteria   TargetCriteria `json:"target_criteria"`
	Channels         []string       `json:"channels" binding:"omitempty,dive,notifchannel"`
	Priority         string         `json:"priority"`
	StartImmediately bool           `json:"start_immediately"`
	CreatedBy        uuid.UUID      `json:"created_by"`
}

// CampaignAnalytics is the overview returned by the analytics endpoint.
type CampaignAnalytics struct {
	CampaignID   uuid.UUID                   `json:"campaign_id"`
	Status       CampaignStatus              `json:"status"`
	Recipients   int                         `json:"recipients"`
	Sent         int                         `json:"sent"`
	Delivered    int                         `json:"delivered"`
	Opened       int                         `json:"opened"`
	Clicked      int                         `json:"clicked"`
	Failed       int                         `json:"failed"`
	DeliveryRate float64                     `json:"delivery_rate"`
	OpenRate     float64                     `json:"open_rate"`
	ClickRate    float64                     `json:"click_rate"`
	Channels     map[Channel]*ChannelMetrics `json:"channels"`
	RecentErrors []*QueueError               `json:"recent_errors"`
}

type ChannelMetrics struct {
	Queued int `db:"queued" json:"queued"`
	Sent   int `db:"sent" json:"sent"`
	Failed int `db:"failed" json:"failed"`
}

// DeliveryOutcome is the terminal result the dispatcher reports back for one
// queue item.
type DeliveryOutcome string

const (
	OutcomeSent   DeliveryOutcome = "sent"
	OutcomeFailed DeliveryOutcome = "failed"
)
