package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/providers"
)

const mapboxGeocodeURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// MapboxProvider geocodes through the Mapbox Geocoding API
type MapboxProvider struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewMapboxProvider creates a Mapbox provider.
func NewMapboxProvider(token string) providers.GeolocationProvider {
	return NewMapboxProviderWithOptions(token, mapboxGeocodeURL, nil)
}

// NewMapboxProviderWithOptions allows overriding base URL and HTTP client.
func NewMapboxProviderWithOptions(token, baseURL string, httpClient *http.Client) providers.GeolocationProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = mapboxGeocodeURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &MapboxProvider{token: token, httpClient: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name returns the source tag
func (m *MapboxProvider) Name() string { return "mapbox" }

// Geocode resolves the address to the first Brazilian feature.
func (m *MapboxProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required")
	}
	if m.token == "" {
		return nil, fmt.Errorf("mapbox access token is required")
	}

	params := url.Values{}
	params.Set("access_token", m.token)
	params.Set("country", "br")
	params.Set("limit", "1")
	params.Set("language", "pt")

	reqURL := fmt.Sprintf("%s/%s.json?%s", m.baseURL, url.PathEscape(trimmed), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build mapbox request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapbox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mapbox request returned status %d", resp.StatusCode)
	}

	var payload mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode mapbox response: %w", err)
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Center) < 2 {
		return nil, providers.ErrAddressNotFound
	}

	center := payload.Features[0].Center
	return &providers.Coordinates{Latitude: center[1], Longitude: center[0], Source: m.Name()}, nil
}

type mapboxResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxFeature struct {
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
}
