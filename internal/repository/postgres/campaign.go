package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type campaignRepository struct {
	*BaseRepository
}

func NewCampaignRepository(db *sqlx.DB) repository.CampaignRepository {
	return &campaignRepository{BaseRepository: NewBaseRepository(db)}
}

var campaignCounters = map[string]bool{
	"sent_count":      true,
	"delivered_count": true,
	"opened_count":    true,
	"clicked_count":   true,
	"failed_count":    true,
}

func (r *campaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	criteria, err := json.Marshal(c.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign criteria: %w", err)
	}
	c.CriteriaRaw = criteria

	query := `
		INSERT INTO campaigns (
			id, name, type, title, body, criteria, channels, priority,
			estimated_recipients, status, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.Type,
		c.Title,
		c.Body,
		c.CriteriaRaw,
		c.Channels,
		c.Priority,
		c.EstimatedRecipients,
		c.Status,
		c.CreatedBy,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *campaignRepository) Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error) {
	query := `
		SELECT id, name, type, title, body, criteria, channels, priority,
			   estimated_recipients, actual_recipients, sent_count,
			   delivered_count, opened_count, clicked_count, failed_count,
			   status, created_by, created_at, updated_at, launched_at, completed_at
		FROM campaigns
		WHERE id = $1
	`
	var c model.Campaign
	err := r.db.GetContext(ctx, &c, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("campaign", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	if len(c.CriteriaRaw) > 0 {
		if err := json.Unmarshal(c.CriteriaRaw, &c.Criteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal campaign criteria: %w", err)
		}
	}
	return &c, nil
}

// UpdateStatus advances the campaign state machine. The current status must be
// one of from; anything else means a disallowed transition and reports
// ValidationError.
func (r *campaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.CampaignStatus, to model.CampaignStatus) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	query := `
		UPDATE campaigns
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`
	result, err := r.db.ExecContext(ctx, query, to, id, pq.Array(states))
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing campaign from a disallowed transition.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return apperrors.Validationf("campaign cannot transition to %s", to)
	}
	return nil
}

func (r *campaignRepository) SetLaunched(ctx context.Context, id uuid.UUID, actualRecipients int) error {
	query := `
		UPDATE campaigns
		SET actual_recipients = $1, launched_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, actualRecipients, id)
	if err != nil {
		return fmt.Errorf("failed to record campaign launch: %w", err)
	}
	return checkAffected(result, "campaign")
}

func (r *campaignRepository) SetCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE campaigns
		SET status = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		model.CampaignStatusCompleted, time.Now(), id,
		model.CampaignStatusRunning, model.CampaignStatusPaused)
	if err != nil {
		return fmt.Errorf("failed to complete campaign: %w", err)
	}
	return nil
}

// IncrementCounter bumps an outcome counter in place. Counters stay correct
// under concurrent dispatcher completions because the increment happens in
// SQL, never in application memory.
func (r *campaignRepository) IncrementCounter(ctx context.Context, id uuid.UUID, counter string, delta int) error {
	if !campaignCounters[counter] {
		return fmt.Errorf("unknown campaign counter %q", counter)
	}

	query := fmt.Sprintf(`
		UPDATE campaigns
		SET %s = %s + $1, updated_at = NOW()
		WHERE id = $2
	`, counter, counter)
	result, err := r.db.ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment campaign counter: %w", err)
	}
	return checkAffected(result, "campaign")
}
