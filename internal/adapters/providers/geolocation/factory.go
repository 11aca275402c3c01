package geolocation

import (
	"fmt"
	"net/http"

	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/pkg/config"
)

// ProviderOff disables outbound geocoding.
const ProviderOff = "off"

// NewProvider builds the provider named by cfg.Provider. It returns nil,
// nil for "off".
func NewProvider(cfg config.GeocoderConfig, httpClient *http.Client) (providers.GeolocationProvider, error) {
	switch cfg.Provider {
	case ProviderOff:
		return nil, nil
	case "", "nominatim":
		return NewNominatimProviderWithOptions(cfg.UserAgent, "", httpClient), nil
	case "google":
		if cfg.Token == "" {
			return nil, fmt.Errorf("GEOCODER=google requires GEOCODER_TOKEN")
		}
		return NewGoogleGeolocationProviderWithOptions(cfg.Token, "", httpClient), nil
	case "mapbox":
		if cfg.Token == "" {
			return nil, fmt.Errorf("GEOCODER=mapbox requires GEOCODER_TOKEN")
		}
		return NewMapboxProviderWithOptions(cfg.Token, "", httpClient), nil
	}
	return nil, fmt.Errorf("unknown geocoder %q", cfg.Provider)
}

// RequestsPerSecond returns the polite request rate for a provider.
func RequestsPerSecond(provider string) float64 {
	switch provider {
	case "", "nominatim":
		return 1
	case "google":
		return 25
	case "mapbox":
		return 10
	}
	return 1
}
