package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/providers"
)

const nominatimSearchURL = "https://nominatim.openstreetmap.org/search"

// NominatimProvider geocodes through OpenStreetMap Nominatim. The public
// instance requires a descriptive User-Agent and at most one request per
// second; the caller enforces the rate.
type NominatimProvider struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
}

// NewNominatimProvider creates a Nominatim provider against the public instance.
func NewNominatimProvider(userAgent string) providers.GeolocationProvider {
	return NewNominatimProviderWithOptions(userAgent, nominatimSearchURL, nil)
}

// NewNominatimProviderWithOptions allows overriding base URL and HTTP client.
func NewNominatimProviderWithOptions(userAgent, baseURL string, httpClient *http.Client) providers.GeolocationProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = nominatimSearchURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &NominatimProvider{userAgent: userAgent, httpClient: httpClient, baseURL: baseURL}
}

// Name returns the source tag
func (n *NominatimProvider) Name() string { return "nominatim" }

// Geocode resolves the address to the best Brazilian match.
func (n *NominatimProvider) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, fmt.Errorf("address is required")
	}

	params := url.Values{}
	params.Set("q", trimmed)
	params.Set("format", "jsonv2")
	params.Set("countrycodes", "br")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept-Language", "pt-BR")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("nominatim request returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return nil, providers.ErrAddressNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nominatim latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nominatim longitude %q: %w", results[0].Lon, err)
	}
	return &providers.Coordinates{Latitude: lat, Longitude: lon, Source: n.Name()}, nil
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
