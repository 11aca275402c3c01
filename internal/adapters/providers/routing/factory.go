package routing

import (
	"fmt"
	"net/http"

	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/pkg/config"
)

// NewProvider builds the routing provider named by cfg.Provider. It returns
// nil, nil when travel time is disabled.
func NewProvider(cfg config.TravelTimeConfig, httpClient *http.Client) (providers.RoutingProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Provider {
	case "", "google":
		if cfg.Token == "" {
			return nil, fmt.Errorf("TRAVEL_TIME_PROVIDER=google requires TRAVEL_TIME_TOKEN")
		}
		return NewGoogleRoutingProviderWithOptions(cfg.Token, cfg.BaseURL, httpClient), nil
	case "osrm":
		return NewOSRMProvider(cfg.BaseURL, httpClient), nil
	}
	return nil, fmt.Errorf("unknown travel time provider %q", cfg.Provider)
}
