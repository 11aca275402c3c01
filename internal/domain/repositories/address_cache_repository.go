package repositories

import (
	"context"

	"github.com/zatekoja/maternidades/internal/domain/entities"
)

// AddressCacheRepository defines the persistent canonical-address store
type AddressCacheRepository interface {
	// Get returns the entry for key, or nil when absent
	Get(ctx context.Context, key string) (*entities.AddressCacheEntry, error)

	// Put inserts or replaces an entry inside a transaction
	Put(ctx context.Context, entry *entities.AddressCacheEntry) error

	// Count returns the number of cached addresses
	Count(ctx context.Context) (int, error)
}
