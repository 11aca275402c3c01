package geocoding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
	"github.com/zatekoja/maternidades/pkg/retry"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*entities.AddressCacheEntry
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*entities.AddressCacheEntry{}}
}

func (m *memoryCache) Get(ctx context.Context, key string) (*entities.AddressCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *memoryCache) Put(ctx context.Context, entry *entities.AddressCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.entries[entry.Key] = entry
	return nil
}

func (m *memoryCache) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mockgeo" }

func (m *MockProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Coordinates), args.Error(1)
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BackoffFactor: 1}
}

func TestCanonicalAddress(t *testing.T) {
	assert.Equal(t, "rua das flores, 120, centro, recife, pe",
		CanonicalAddress("Rua  das Flores", "120", " Centro ", "RECIFE", "PE"))
	assert.Equal(t, "av. brasil, rio de janeiro, rj",
		CanonicalAddress("Av. Brasil", "", "", "Rio de Janeiro", "RJ"))
	assert.Equal(t, "", CanonicalAddress("", " ", "", "", ""))
}

func TestGeocoder_FullCacheMakesNoProviderCalls(t *testing.T) {
	cache := newMemoryCache()
	addrs := []string{
		CanonicalAddress("Rua A", "1", "", "Recife", "PE"),
		CanonicalAddress("Rua B", "2", "", "Salvador", "BA"),
	}
	for i, a := range addrs {
		cache.entries[a] = &entities.AddressCacheEntry{Key: a, Lat: -8 - float64(i), Lon: -35, Source: "google"}
	}
	provider := new(MockProvider)
	g := New(cache, provider, Options{Budget: 10, Retry: fastRetry()})

	for _, a := range addrs {
		coords, err := g.Geocode(context.Background(), a)
		require.NoError(t, err)
		assert.Equal(t, SourceCache, coords.Source)
	}
	provider.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
	assert.Equal(t, 2, g.Stats().CacheHits)
	assert.Zero(t, cache.puts)
}

func TestGeocoder_WritesBackProviderAnswer(t *testing.T) {
	cache := newMemoryCache()
	provider := new(MockProvider)
	provider.On("Geocode", mock.Anything, "rua a, 1, recife, pe").
		Return(&providers.Coordinates{Latitude: -8.05, Longitude: -34.9}, nil).Once()
	g := New(cache, provider, Options{Budget: -1, Retry: fastRetry()})

	coords, err := g.Geocode(context.Background(), "Rua A, 1,  Recife, PE")
	require.NoError(t, err)
	assert.Equal(t, "mockgeo", coords.Source)

	entry := cache.entries["rua a, 1, recife, pe"]
	require.NotNil(t, entry)
	assert.Equal(t, "mockgeo", entry.Source)

	coords, err = g.Geocode(context.Background(), "rua a, 1, recife, pe")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, coords.Source)
	provider.AssertExpectations(t)
}

func TestGeocoder_RetriesTransientFailures(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Geocode", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Twice()
	provider.On("Geocode", mock.Anything, mock.Anything).
		Return(&providers.Coordinates{Latitude: -15.8, Longitude: -47.9}, nil).Once()
	g := New(newMemoryCache(), provider, Options{Budget: -1, Retry: fastRetry()})

	coords, err := g.Geocode(context.Background(), "brasilia, df")
	require.NoError(t, err)
	assert.Equal(t, -15.8, coords.Latitude)
	provider.AssertNumberOfCalls(t, "Geocode", 3)
}

func TestGeocoder_NotFoundIsNotRetried(t *testing.T) {
	cache := newMemoryCache()
	provider := new(MockProvider)
	provider.On("Geocode", mock.Anything, mock.Anything).Return(nil, providers.ErrAddressNotFound)
	g := New(cache, provider, Options{Budget: -1, Retry: fastRetry()})

	coords, err := g.Geocode(context.Background(), "lugar nenhum")
	assert.Nil(t, coords)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeGeocodeUnavailable))
	assert.ErrorIs(t, err, providers.ErrAddressNotFound)
	provider.AssertNumberOfCalls(t, "Geocode", 1)
	assert.Zero(t, cache.puts)
	assert.Equal(t, 1, g.Stats().Failures)
}

func TestGeocoder_OutOfBoundsIsUnresolved(t *testing.T) {
	cache := newMemoryCache()
	provider := new(MockProvider)
	provider.On("Geocode", mock.Anything, mock.Anything).
		Return(&providers.Coordinates{Latitude: 38.7, Longitude: -9.1}, nil)
	g := New(cache, provider, Options{Budget: -1, Retry: fastRetry()})

	coords, err := g.Geocode(context.Background(), "lisboa")
	assert.Nil(t, coords)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Zero(t, cache.puts)
	assert.Equal(t, 1, g.Stats().OutOfBounds)
}

func TestGeocoder_BudgetExhaustion(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Geocode", mock.Anything, mock.Anything).
		Return(&providers.Coordinates{Latitude: -20, Longitude: -44}, nil)
	g := New(newMemoryCache(), provider, Options{Budget: 2, Retry: fastRetry()})

	for _, a := range []string{"a", "b"} {
		_, err := g.Geocode(context.Background(), a)
		require.NoError(t, err)
	}
	_, err := g.Geocode(context.Background(), "c")
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	provider.AssertNumberOfCalls(t, "Geocode", 2)
	assert.Equal(t, 1, g.Stats().Skipped)

	// Already cached addresses still resolve.
	coords, err := g.Geocode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, coords.Source)
}

func TestGeocoder_NoProvider(t *testing.T) {
	g := New(newMemoryCache(), nil, Options{})
	_, err := g.Geocode(context.Background(), "recife")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeGeocodeUnavailable))
	assert.Equal(t, "off", g.ProviderName())
}

func TestGeocoder_LookupIgnoresOutOfBoundsEntries(t *testing.T) {
	cache := newMemoryCache()
	cache.entries["x"] = &entities.AddressCacheEntry{Key: "x", Lat: 40, Lon: -3}
	g := New(cache, nil, Options{})

	_, ok, err := g.Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
}
