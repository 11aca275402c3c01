package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	tsclient "github.com/zatekoja/maternidades/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter implements the facility name index using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ providers.FacilitySearchIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

const importBatchSize = 200

// Index upserts facilities in import batches. Facilities without
// coordinates are skipped.
func (a *TypesenseAdapter) Index(ctx context.Context, facilities []*entities.Facility) error {
	docs := make([]interface{}, 0, len(facilities))
	for _, f := range facilities {
		if doc := facilityDocument(f); doc != nil {
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil
	}

	results, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Import(ctx, docs, &api.ImportDocumentsParams{
		Action:    pointer.String("upsert"),
		BatchSize: pointer.Int(importBatchSize),
	})
	if err != nil {
		return fmt.Errorf("failed to import facilities: %w", err)
	}
	failed := 0
	var firstErr string
	for _, r := range results {
		if r != nil && !r.Success {
			if failed == 0 {
				firstErr = r.Error
			}
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to import %d of %d facilities: %s", failed, len(docs), firstErr)
	}
	return nil
}

// Search returns CNES ids in relevance order, confirmed maternities first
// among equally relevant hits.
func (a *TypesenseAdapter) Search(ctx context.Context, query, uf string, limit int) ([]string, error) {
	params := &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("display_name,legal_name"),
		SortBy:  pointer.String("_text_match:desc,label_rank:asc"),
		PerPage: pointer.Int(limit),
	}
	if uf = strings.ToUpper(strings.TrimSpace(uf)); uf != "" {
		params.FilterBy = pointer.String("uf:=" + uf)
	}

	result, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to search facilities: %w", err)
	}
	if result.Hits == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func facilityDocument(f *entities.Facility) map[string]interface{} {
	if f == nil || !f.HasCoordinates() {
		return nil
	}
	return map[string]interface{}{
		"id":           f.CNESID,
		"display_name": f.DisplayName,
		"legal_name":   f.LegalName,
		"municipality": f.Municipality,
		"uf":           f.UF,
		"label":        string(f.Label()),
		"label_rank":   f.Label().Rank(),
		"location":     []float64{*f.Lat, *f.Lon},
	}
}
