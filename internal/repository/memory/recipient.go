package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type RecipientRepository struct {
	mu         sync.Mutex
	recipients map[uuid.UUID]*model.Recipient
}

func NewRecipientRepository(recipients ...*model.Recipient) *RecipientRepository {
	r := &RecipientRepository{recipients: make(map[uuid.UUID]*model.Recipient)}
	for _, rcpt := range recipients {
		clone := *rcpt
		r.recipients[rcpt.ID] = &clone
	}
	return r
}

var _ repository.RecipientRepository = (*RecipientRepository)(nil)

func (r *RecipientRepository) Add(rcpt *model.Recipient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *rcpt
	r.recipients[rcpt.ID] = &clone
}

func (r *RecipientRepository) Get(_ context.Context, id uuid.UUID) (*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rcpt, ok := r.recipients[id]
	if !ok {
		return nil, apperrors.NotFound("recipient", nil)
	}
	clone := *rcpt
	return &clone, nil
}

func (r *RecipientRepository) matches(rcpt *model.Recipient, criteria model.TargetCriteria) bool {
	if criteria.Region != "" && rcpt.Region != criteria.Region {
		return false
	}
	if criteria.VehicleModel != "" && rcpt.VehicleModel != criteria.VehicleModel {
		return false
	}
	if criteria.WarrantyExpiringWithinDays > 0 {
		if rcpt.WarrantyExpiresAt == nil {
			return false
		}
		cutoff := time.Now().AddDate(0, 0, criteria.WarrantyExpiringWithinDays)
		if rcpt.WarrantyExpiresAt.After(cutoff) {
			return false
		}
	}
	return true
}

func (r *RecipientRepository) FindByCriteria(_ context.Context, criteria model.TargetCriteria) ([]*model.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*model.Recipient
	for _, rcpt := range r.recipients {
		if r.matches(rcpt, criteria) {
			clone := *rcpt
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return matched, nil
}

func (r *RecipientRepository) CountByCriteria(ctx context.Context, criteria model.TargetCriteria) (int, error) {
	matched, err := r.FindByCriteria(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}
