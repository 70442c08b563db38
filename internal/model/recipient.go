package model

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is the read model over the customer records owned by the rest of
// the back office. The delivery engine only resolves addresses and targeting
// from it; it never writes customers.
type Recipient struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	Email             *string    `db:"email" json:"email,omitempty"`
	Phone             *string    `db:"phone" json:"phone,omitempty"`
	Region            string     `db:"region" json:"region"`
	VehicleModel      string     `db:"vehicle_model" json:"vehicle_model"`
	WarrantyExpiresAt *time.Time `db:"warranty_expires_at" json:"warranty_expires_at,omitempty"`
}

// AddressFor returns the delivery address for a channel and whether the
// recipient has a usable one. In-app needs no address beyond the recipient id.
func (r *Recipient) AddressFor(ch Channel) (string, bool) {
	switch ch {
	case ChannelEmail:
		if r.Email != nil && *r.Email != "" {
			return *r.Email, true
		}
	case ChannelSMS:
		if r.Phone != nil && *r.Phone != "" {
			return *r.Phone, true
		}
	case ChannelInApp:
		return r.ID.String(), true
	}
	return "", false
}
