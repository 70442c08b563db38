package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type CampaignRepository struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
}

func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{campaigns: make(map[uuid.UUID]*model.Campaign)}
}

var _ repository.CampaignRepository = (*CampaignRepository)(nil)

func (r *CampaignRepository) Create(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *c
	r.campaigns[c.ID] = &clone
	return nil
}

func (r *CampaignRepository) Get(_ context.Context, id uuid.UUID) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, apperrors.NotFound("campaign", nil)
	}
	clone := *c
	return &clone, nil
}

func (r *CampaignRepository) UpdateStatus(_ context.Context, id uuid.UUID, from []model.CampaignStatus, to model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", nil)
	}
	for _, s := range from {
		if c.Status == s {
			c.Status = to
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return apperrors.Validationf("campaign cannot transition to %s", to)
}

func (r *CampaignRepository) SetLaunched(_ context.Context, id uuid.UUID, actualRecipients int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", nil)
	}
	now := time.Now()
	c.ActualRecipients = actualRecipients
	c.LaunchedAt = &now
	c.UpdatedAt = now
	return nil
}

func (r *CampaignRepository) SetCompleted(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", nil)
	}
	if c.Status == model.CampaignStatusRunning || c.Status == model.CampaignStatusPaused {
		now := time.Now()
		c.Status = model.CampaignStatusCompleted
		c.CompletedAt = &now
		c.UpdatedAt = now
	}
	return nil
}

func (r *CampaignRepository) IncrementCounter(_ context.Context, id uuid.UUID, counter string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return apperrors.NotFound("campaign", nil)
	}
	switch counter {
	case "sent_count":
		c.SentCount += delta
	case "delivered_count":
		c.DeliveredCount += delta
	case "opened_count":
		c.OpenedCount += delta
	case "clicked_count":
		c.ClickedCount += delta
	case "failed_count":
		c.FailedCount += delta
	default:
		return fmt.Errorf("unknown campaign counter %q", counter)
	}
	c.UpdatedAt = time.Now()
	return nil
}
