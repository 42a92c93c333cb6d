package cache

import (
	"context"
	"time"

	"alyapos/backend/internal/domain"
)

// SearchCache caches product-search results keyed by normalized query.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]domain.Product, bool, error)
	Set(ctx context.Context, key string, products []domain.Product, ttl time.Duration) error
}

type NoopSearchCache struct{}

func (NoopSearchCache) Get(_ context.Context, _ string) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopSearchCache) Set(_ context.Context, _ string, _ []domain.Product, _ time.Duration) error {
	return nil
}
