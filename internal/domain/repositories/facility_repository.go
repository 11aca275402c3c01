package repositories

import (
	"context"

	"github.com/zatekoja/maternidades/internal/domain/entities"
)

// FacilityRepository reads published facility artifacts
type FacilityRepository interface {
	// LoadGeo returns every facility of the minimal geo artifact
	LoadGeo(ctx context.Context) ([]*entities.Facility, error)

	// LoadReady returns every facility of the full artifact
	LoadReady(ctx context.Context) ([]*entities.Facility, error)
}
