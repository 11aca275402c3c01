package geolocation

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/pkg/utils"
)

// MockGeolocationProvider resolves a few Brazilian capitals by substring and
// counts its calls. Unknown addresses are not found.
type MockGeolocationProvider struct {
	calls atomic.Int64
}

// NewMockGeolocationProvider creates a new mock geolocation provider
func NewMockGeolocationProvider() *MockGeolocationProvider {
	return &MockGeolocationProvider{}
}

var mockCoordinates = []struct {
	city   string
	coords providers.Coordinates
}{
	{"sao paulo", providers.Coordinates{Latitude: -23.5505, Longitude: -46.6333}},
	{"rio de janeiro", providers.Coordinates{Latitude: -22.9068, Longitude: -43.1729}},
	{"belo horizonte", providers.Coordinates{Latitude: -19.9167, Longitude: -43.9345}},
	{"salvador", providers.Coordinates{Latitude: -12.9777, Longitude: -38.5016}},
	{"recife", providers.Coordinates{Latitude: -8.0476, Longitude: -34.8770}},
	{"manaus", providers.Coordinates{Latitude: -3.1190, Longitude: -60.0217}},
	{"lisboa", providers.Coordinates{Latitude: 38.7223, Longitude: -9.1393}},
}

// Name returns the source tag
func (m *MockGeolocationProvider) Name() string { return "mock" }

// Geocode converts an address to coordinates (mock implementation)
func (m *MockGeolocationProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folded := utils.FoldText(address)
	for _, entry := range mockCoordinates {
		if strings.Contains(folded, entry.city) {
			c := entry.coords
			c.Source = m.Name()
			return &c, nil
		}
	}
	return nil, providers.ErrAddressNotFound
}

// Calls returns how many times Geocode was invoked
func (m *MockGeolocationProvider) Calls() int64 {
	return m.calls.Load()
}
