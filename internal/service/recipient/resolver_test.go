package recipient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
	apperrors "github.com/evlink/warranty-notify/pkg/errors"
)

// countingRepo counts lookups so the cache hit path is observable.
type countingRepo struct {
	repository.RecipientRepository
	recipients map[uuid.UUID]*model.Recipient
	lookups    int
}

func (r *countingRepo) Get(_ context.Context, id uuid.UUID) (*model.Recipient, error) {
	r.lookups++
	rcpt, ok := r.recipients[id]
	if !ok {
		return nil, apperrors.NotFound("recipient", nil)
	}
	return rcpt, nil
}

func TestResolverCachesLookups(t *testing.T) {
	email := "kim@example.com"
	rcpt := &model.Recipient{ID: uuid.New(), Name: "Kim", Email: &email}
	repo := &countingRepo{recipients: map[uuid.UUID]*model.Recipient{rcpt.ID: rcpt}}
	resolver := NewResolver(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		got, err := resolver.Get(ctx, rcpt.ID)
		require.NoError(t, err)
		assert.Equal(t, rcpt.ID, got.ID)
	}
	assert.Equal(t, 1, repo.lookups)
}

func TestResolverDoesNotCacheMisses(t *testing.T) {
	repo := &countingRepo{recipients: map[uuid.UUID]*model.Recipient{}}
	resolver := NewResolver(repo, time.Minute)
	ctx := context.Background()

	id := uuid.New()
	_, err := resolver.Get(ctx, id)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = resolver.Get(ctx, id)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 2, repo.lookups)
}
