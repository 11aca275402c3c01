package providers

import (
	"context"

	"github.com/zatekoja/maternidades/internal/domain/entities"
)

// Destination is a facility a route is requested for
type Destination struct {
	CNESID string
	Lat    float64
	Lon    float64
}

// RoutingProvider returns driving estimates from one origin to many
// destinations in a single call.
type RoutingProvider interface {
	Name() string

	// MaxDestinations is the per-call destination limit.
	MaxDestinations() int

	// TravelTimes returns one entry per destination the provider could route.
	// Unroutable destinations are omitted.
	TravelTimes(ctx context.Context, origin Coordinates, destinations []Destination) ([]entities.TravelTime, error)
}
