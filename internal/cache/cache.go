package cache

import (
	"context"
	"errors"

	"github.com/Sylius/FrontWing/internal/domain"
)

// OrderCache holds the last fetched snapshot per cart token. Delete bumps the
// token's generation; Set writes only while the generation is still the one
// read before the snapshot was fetched.
type OrderCache interface {
	Get(ctx context.Context, token string) (*domain.Order, error)
	Generation(ctx context.Context, token string) (int64, error)
	Set(ctx context.Context, token string, order *domain.Order, generation int64) error
	Delete(ctx context.Context, token string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleSnapshot means the snapshot was fetched before the last Delete.
	ErrStaleSnapshot = errors.New("snapshot older than last invalidation")
)
