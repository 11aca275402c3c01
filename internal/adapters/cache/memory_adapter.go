package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zatekoja/maternidades/internal/domain/providers"
)

// MemoryAdapter implements the CacheProvider interface in process memory
type MemoryAdapter struct {
	store *gocache.Cache
}

// NewMemoryAdapter creates an in-memory cache adapter. Expired entries are
// purged every cleanupInterval.
func NewMemoryAdapter(cleanupInterval time.Duration) providers.CacheProvider {
	return &MemoryAdapter{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := a.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected cache value for %s", key)
	}
	return b, nil
}

// Set stores a value in cache with expiration. Zero seconds means no expiry.
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	ttl := gocache.NoExpiration
	if expirationSeconds > 0 {
		ttl = time.Duration(expirationSeconds) * time.Second
	}
	a.store.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.store.Delete(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := a.store.Get(key)
	return ok, nil
}
