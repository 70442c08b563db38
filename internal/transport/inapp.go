package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/pkg/messaging"
)

// InAppTransport pushes to the recipient's in-app feed through the message
// broker. Delivery is considered complete once the broker accepts the publish.
type InAppTransport struct {
	broker messaging.Broker
}

func NewInAppTransport(broker messaging.Broker) *InAppTransport {
	return &InAppTransport{broker: broker}
}

func (t *InAppTransport) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	payload := &messaging.InAppMessage{
		RecipientID: msg.RecipientID,
		Title:       msg.Subject,
		Body:        msg.Body,
	}
	if payload.RecipientID == "" {
		payload.RecipientID = msg.Address
	}

	if err := t.broker.Publish(ctx, messaging.ChannelInAppNotifications, payload); err != nil {
		return nil, Transient("failed to publish in-app notification", err)
	}
	return &Receipt{ProviderMessageID: "inapp-" + uuid.New().String()}, nil
}
