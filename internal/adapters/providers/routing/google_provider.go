package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
)

const (
	googleDistanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	googleMaxDestinations   = 25
	defaultHTTPTimeout      = 8 * time.Second
)

// GoogleRoutingProvider returns driving times from the Google Distance Matrix API
type GoogleRoutingProvider struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewGoogleRoutingProvider creates a Distance Matrix provider.
func NewGoogleRoutingProvider(apiKey string) providers.RoutingProvider {
	return NewGoogleRoutingProviderWithOptions(apiKey, googleDistanceMatrixURL, nil)
}

// NewGoogleRoutingProviderWithOptions allows overriding base URL and HTTP client (used for tests).
func NewGoogleRoutingProviderWithOptions(apiKey, baseURL string, httpClient *http.Client) providers.RoutingProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = googleDistanceMatrixURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &GoogleRoutingProvider{apiKey: apiKey, httpClient: httpClient, baseURL: baseURL}
}

// Name returns the provider tag
func (g *GoogleRoutingProvider) Name() string { return "google" }

// MaxDestinations is the Distance Matrix per-request element limit for one origin.
func (g *GoogleRoutingProvider) MaxDestinations() int { return googleMaxDestinations }

// TravelTimes requests one origin row against all destinations.
func (g *GoogleRoutingProvider) TravelTimes(ctx context.Context, origin providers.Coordinates, destinations []providers.Destination) ([]entities.TravelTime, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	if len(destinations) > googleMaxDestinations {
		return nil, fmt.Errorf("distance matrix accepts at most %d destinations, got %d", googleMaxDestinations, len(destinations))
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("google maps api key is required")
	}

	dests := make([]string, len(destinations))
	for i, d := range destinations {
		dests[i] = latLng(d.Lat, d.Lon)
	}

	params := url.Values{}
	params.Set("origins", latLng(origin.Latitude, origin.Longitude))
	params.Set("destinations", strings.Join(dests, "|"))
	params.Set("mode", "driving")
	params.Set("language", "pt-BR")
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build distance matrix request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("distance matrix request returned status %d", resp.StatusCode)
	}

	var payload distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode distance matrix response: %w", err)
	}
	if payload.Status != "OK" {
		if payload.ErrorMessage != "" {
			return nil, fmt.Errorf("distance matrix failed: %s - %s", payload.Status, payload.ErrorMessage)
		}
		return nil, fmt.Errorf("distance matrix failed: %s", payload.Status)
	}
	if len(payload.Rows) == 0 {
		return nil, nil
	}

	elements := payload.Rows[0].Elements
	out := make([]entities.TravelTime, 0, len(elements))
	for i, el := range elements {
		if i >= len(destinations) || el.Status != "OK" {
			continue
		}
		out = append(out, entities.TravelTime{
			CNESID:  destinations[i].CNESID,
			Seconds: el.Duration.Value,
			Meters:  el.Distance.Value,
		})
	}
	return out, nil
}

func latLng(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}

type distanceMatrixResponse struct {
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Rows         []distanceMatrixRow `json:"rows"`
}

type distanceMatrixRow struct {
	Elements []distanceMatrixElement `json:"elements"`
}

type distanceMatrixElement struct {
	Status   string         `json:"status"`
	Duration distanceMetric `json:"duration"`
	Distance distanceMetric `json:"distance"`
}

type distanceMetric struct {
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}
