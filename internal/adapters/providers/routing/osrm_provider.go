package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
)

const (
	osrmPublicURL       = "https://router.project-osrm.org"
	osrmMaxDestinations = 100
)

// OSRMProvider uses the OSRM table service. Coordinates are lon,lat.
type OSRMProvider struct {
	httpClient *http.Client
	baseURL    string
}

// NewOSRMProvider creates an OSRM table provider. An empty baseURL uses the
// public demo server.
func NewOSRMProvider(baseURL string, httpClient *http.Client) providers.RoutingProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = osrmPublicURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &OSRMProvider{httpClient: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name returns the provider tag
func (o *OSRMProvider) Name() string { return "osrm" }

// MaxDestinations is the table size accepted by default OSRM deployments.
func (o *OSRMProvider) MaxDestinations() int { return osrmMaxDestinations }

// TravelTimes queries /table with the origin as the only source.
func (o *OSRMProvider) TravelTimes(ctx context.Context, origin providers.Coordinates, destinations []providers.Destination) ([]entities.TravelTime, error) {
	if len(destinations) == 0 {
		return nil, nil
	}
	if len(destinations) > osrmMaxDestinations {
		return nil, fmt.Errorf("osrm table accepts at most %d destinations, got %d", osrmMaxDestinations, len(destinations))
	}

	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, lonLat(origin.Latitude, origin.Longitude))
	dstIdx := make([]string, len(destinations))
	for i, d := range destinations {
		coords = append(coords, lonLat(d.Lat, d.Lon))
		dstIdx[i] = strconv.Itoa(i + 1)
	}

	reqURL := fmt.Sprintf("%s/table/v1/driving/%s?sources=0&destinations=%s&annotations=duration,distance",
		o.baseURL, strings.Join(coords, ";"), strings.Join(dstIdx, ";"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build osrm request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("osrm request returned status %d", resp.StatusCode)
	}

	var payload osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode osrm response: %w", err)
	}
	if payload.Code != "Ok" {
		return nil, fmt.Errorf("osrm table failed: %s %s", payload.Code, payload.Message)
	}
	if len(payload.Durations) == 0 {
		return nil, nil
	}

	durations := payload.Durations[0]
	var distances []*float64
	if len(payload.Distances) > 0 {
		distances = payload.Distances[0]
	}
	out := make([]entities.TravelTime, 0, len(durations))
	for i, d := range durations {
		if i >= len(destinations) || d == nil {
			continue
		}
		tt := entities.TravelTime{CNESID: destinations[i].CNESID, Seconds: *d}
		if i < len(distances) && distances[i] != nil {
			tt.Meters = *distances[i]
		}
		out = append(out, tt)
	}
	return out, nil
}

func lonLat(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lon, lat)
}

// Unroutable cells come back as null.
type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message,omitempty"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}
