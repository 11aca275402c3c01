package providers

import (
	"context"

	"github.com/zatekoja/maternidades/internal/domain/entities"
)

// FacilitySearchIndex is an external full-text index over facility names.
type FacilitySearchIndex interface {
	// Search returns the CNES ids matching query in relevance order.
	Search(ctx context.Context, query, uf string, limit int) ([]string, error)

	// Index upserts facilities into the index.
	Index(ctx context.Context, facilities []*entities.Facility) error
}
