package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

type recipientRepository struct {
	*BaseRepository
}

func NewRecipientRepository(db *sqlx.DB) repository.RecipientRepository {
	return &recipientRepository{BaseRepository: NewBaseRepository(db)}
}

const recipientColumns = `id, name, email, phone, region, vehicle_model, warranty_expires_at`

func (r *recipientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, recipientColumns)

	var recipient model.Recipient
	err := r.db.GetContext(ctx, &recipient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("recipient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &recipient, nil
}

func criteriaWhere(criteria model.TargetCriteria) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}

	if criteria.Region != "" {
		args = append(args, criteria.Region)
		where += fmt.Sprintf(" AND region = $%d", len(args))
	}
	if criteria.VehicleModel != "" {
		args = append(args, criteria.VehicleModel)
		where += fmt.Sprintf(" AND vehicle_model = $%d", len(args))
	}
	if criteria.WarrantyExpiringWithinDays > 0 {
		args = append(args, criteria.WarrantyExpiringWithinDays)
		where += fmt.Sprintf(" AND warranty_expires_at IS NOT NULL AND warranty_expires_at <= NOW() + ($%d || ' days')::interval", len(args))
	}
	return where, args
}

func (r *recipientRepository) FindByCriteria(ctx context.Context, criteria model.TargetCriteria) ([]*model.Recipient, error) {
	where, args := criteriaWhere(criteria)
	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY id`, recipientColumns, where)

	var recipients []*model.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find recipients: %w", err)
	}
	return recipients, nil
}

func (r *recipientRepository) CountByCriteria(ctx context.Context, criteria model.TargetCriteria) (int, error) {
	where, args := criteriaWhere(criteria)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM customers %s`, where)

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}
	return count, nil
}
