package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels the delivery engine publishes on.
const (
	ChannelInAppNotifications = "notifications"
	ChannelDeliveryEvents     = "delivery.events"
)

// InAppMessage is the payload pushed to a recipient's in-app feed.
type InAppMessage struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// DeliveryEvent is published for every terminal queue outcome so downstream
// alerting and stats consumers can react without polling the queue table.
type DeliveryEvent struct {
	QueueItemID    string `json:"queue_item_id"`
	NotificationID string `json:"notification_id,omitempty"`
	CampaignID     string `json:"campaign_id,omitempty"`
	Channel        string `json:"channel"`
	Outcome        string `json:"outcome"`
	Error          string `json:"error,omitempty"`
}
