package providers

import (
	"context"
	"errors"
)

// ErrAddressNotFound is returned by a GeolocationProvider when the provider
// answered but had no match for the address. Callers must not retry it.
var ErrAddressNotFound = errors.New("address not found")

// GeolocationProvider defines the interface for geocoding services
type GeolocationProvider interface {
	// Name is the source tag written to the address cache
	Name() string

	// Geocode converts an address to coordinates
	Geocode(ctx context.Context, address string) (*Coordinates, error)
}

// Coordinates represents geographical coordinates
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Source    string  `json:"source,omitempty"`
}
