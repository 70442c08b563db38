package recipient

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/evlink/warranty-notify/internal/model"
	"github.com/evlink/warranty-notify/internal/repository"
)

// Resolver looks up recipient address records with a short-lived cache so
// notification creation and fan-out don't hammer the customers table. The TTL
// is short: a stale phone number only survives until the next refresh, and a
// failed delivery retries with a fresh lookup anyway.
type Resolver struct {
	repo  repository.RecipientRepository
	cache *gocache.Cache
}

func NewResolver(repo repository.RecipientRepository, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Resolver{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *Resolver) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	if cached, ok := r.cache.Get(id.String()); ok {
		return cached.(*model.Recipient), nil
	}

	recipient, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(id.String(), recipient)
	return recipient, nil
}
