package geocoding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/domain/repositories"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
	"github.com/zatekoja/maternidades/pkg/retry"
)

// SourceCache tags coordinates answered from the address cache.
const SourceCache = "cache"

// ErrBudgetExhausted is wrapped by Geocode once the provider call budget is spent.
var ErrBudgetExhausted = errors.New("geocode budget exhausted")

// ErrOutOfBounds is wrapped by Geocode when the provider answer lies outside Brazil.
var ErrOutOfBounds = errors.New("geocode result outside Brazil")

// Options tune a Geocoder
type Options struct {
	// Budget caps provider calls. Negative means unlimited.
	Budget int
	// RequestsPerSecond for the provider. Zero or less disables the limiter.
	RequestsPerSecond float64
	Retry             retry.Config
}

// Stats counts what the geocoder did
type Stats struct {
	CacheHits    int
	ProviderHits int
	Failures     int
	Skipped      int
	OutOfBounds  int
}

// Geocoder resolves canonical addresses through the address cache and an
// optional external provider. It is the only writer of the address cache.
type Geocoder struct {
	cache    repositories.AddressCacheRepository
	provider providers.GeolocationProvider
	limiter  *rate.Limiter
	retryCfg retry.Config
	budget   int64

	calls        atomic.Int64
	cacheHits    atomic.Int64
	providerHits atomic.Int64
	failures     atomic.Int64
	skipped      atomic.Int64
	outOfBounds  atomic.Int64
}

// New creates a geocoder. provider may be nil, in which case only the cache
// answers.
func New(cache repositories.AddressCacheRepository, provider providers.GeolocationProvider, opts Options) *Geocoder {
	g := &Geocoder{
		cache:    cache,
		provider: provider,
		retryCfg: opts.Retry,
		budget:   int64(opts.Budget),
	}
	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return g
}

// Lookup consults the address cache only.
func (g *Geocoder) Lookup(ctx context.Context, key string) (*providers.Coordinates, bool, error) {
	if g.cache == nil || key == "" {
		return nil, false, nil
	}
	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if entry == nil || !entities.InBrazil(entry.Lat, entry.Lon) {
		return nil, false, nil
	}
	return &providers.Coordinates{Latitude: entry.Lat, Longitude: entry.Lon, Source: SourceCache}, true, nil
}

// Geocode resolves address from the cache, then from the provider. A
// successful provider answer inside Brazil is written back to the cache.
// Every failure returns a GEOCODE_UNAVAILABLE error and leaves the cache
// untouched.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	key := cacheKey(address)
	if key == "" {
		g.skipped.Add(1)
		return nil, apperrors.NewGeocodeUnavailableError("empty address", nil)
	}

	coords, ok, err := g.Lookup(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("address cache read failed")
	}
	if ok {
		g.cacheHits.Add(1)
		return coords, nil
	}

	if g.provider == nil {
		g.skipped.Add(1)
		return nil, apperrors.NewGeocodeUnavailableError("no geocoder configured", nil)
	}
	if g.budget >= 0 && g.calls.Add(1) > g.budget {
		g.skipped.Add(1)
		return nil, apperrors.NewGeocodeUnavailableError("geocode budget exhausted", ErrBudgetExhausted)
	}

	var result *providers.Coordinates
	err = retry.DoWithLog(ctx, g.retryCfg, g.provider.Name(), func() error {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		c, err := g.provider.Geocode(ctx, key)
		if errors.Is(err, providers.ErrAddressNotFound) {
			return retry.Permanent(err)
		}
		if err != nil {
			return err
		}
		result = c
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("next_delay", nextDelay).Str("provider", g.provider.Name()).Msg("geocode attempt failed")
	})
	if err != nil {
		g.failures.Add(1)
		return nil, apperrors.NewGeocodeUnavailableError(fmt.Sprintf("%s could not resolve address", g.provider.Name()), err)
	}
	if result == nil || !entities.InBrazil(result.Latitude, result.Longitude) {
		g.outOfBounds.Add(1)
		return nil, apperrors.NewGeocodeUnavailableError("geocode result outside Brazil", ErrOutOfBounds)
	}

	g.providerHits.Add(1)
	result.Source = g.provider.Name()
	if g.cache != nil {
		if err := g.cache.Put(ctx, &entities.AddressCacheEntry{
			Key:    key,
			Lat:    result.Latitude,
			Lon:    result.Longitude,
			Source: result.Source,
		}); err != nil {
			log.Warn().Err(err).Msg("address cache write failed")
		}
	}
	return result, nil
}

// Stats returns a snapshot of the counters
func (g *Geocoder) Stats() Stats {
	return Stats{
		CacheHits:    int(g.cacheHits.Load()),
		ProviderHits: int(g.providerHits.Load()),
		Failures:     int(g.failures.Load()),
		Skipped:      int(g.skipped.Load()),
		OutOfBounds:  int(g.outOfBounds.Load()),
	}
}

// ProviderName returns the configured provider's tag, or "off".
func (g *Geocoder) ProviderName() string {
	if g.provider == nil {
		return "off"
	}
	return g.provider.Name()
}
