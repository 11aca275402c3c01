package geolocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/providers"
)

const defaultGeocodeCacheTTL = 60 * 60 * 24 * 30

// CachedProvider memoizes another provider's answers in a CacheProvider.
// Only successful lookups are stored.
type CachedProvider struct {
	inner      providers.GeolocationProvider
	cache      providers.CacheProvider
	ttlSeconds int
}

// NewCachedProvider wraps inner. A non-positive ttl uses thirty days.
func NewCachedProvider(inner providers.GeolocationProvider, cache providers.CacheProvider, ttlSeconds int) *CachedProvider {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultGeocodeCacheTTL
	}
	return &CachedProvider{inner: inner, cache: cache, ttlSeconds: ttlSeconds}
}

// Name returns the wrapped provider's tag
func (c *CachedProvider) Name() string { return c.inner.Name() }

// Geocode consults the cache before the wrapped provider.
func (c *CachedProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	cacheKey := "geo:v3:geocode:" + hashKey(strings.ToLower(strings.TrimSpace(address)))
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var coords providers.Coordinates
			if err := json.Unmarshal(cached, &coords); err == nil && (coords.Latitude != 0 || coords.Longitude != 0) {
				return &coords, nil
			}
		}
	}

	coords, err := c.inner.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if payload, err := json.Marshal(coords); err == nil {
			_ = c.cache.Set(ctx, cacheKey, payload, c.ttlSeconds)
		}
	}
	return coords, nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
