package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
)

// TravelTimeCache keeps routing answers per origin and destination set.
// Expired entries are never returned; purging runs every cleanupInterval
// when it is positive.
type TravelTimeCache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewTravelTimeCache creates a cache whose entries live for ttl.
func NewTravelTimeCache(ttl, cleanupInterval time.Duration) *TravelTimeCache {
	return &TravelTimeCache{store: gocache.New(ttl, cleanupInterval), ttl: ttl}
}

// Get returns the cached travel times for the key.
func (c *TravelTimeCache) Get(key string) (map[string]entities.TravelTime, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]entities.TravelTime)
	return m, ok
}

// Set stores travel times under key with the cache TTL.
func (c *TravelTimeCache) Set(key string, times map[string]entities.TravelTime) {
	c.store.Set(key, times, c.ttl)
}

// Len counts entries, expired ones included until purged.
func (c *TravelTimeCache) Len() int { return c.store.ItemCount() }

// TravelTimeKey identifies a routing request: the origin rounded to four
// decimals (about 11 m) plus the sorted destination ids.
func TravelTimeKey(provider string, origin providers.Coordinates, destinations []providers.Destination) string {
	ids := make([]string, len(destinations))
	for i, d := range destinations {
		ids[i] = d.CNESID
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return fmt.Sprintf("tt:%s:%.4f:%.4f:%s", provider, origin.Latitude, origin.Longitude, hex.EncodeToString(sum[:8]))
}
