package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/maternidades/pkg/config"
	"github.com/zatekoja/maternidades/pkg/retry"
)

// FacilitiesCollection holds one document per geo-artifact facility.
const FacilitiesCollection = "maternidades"

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// New creates a client without contacting the server.
func New(cfg *config.TypesenseConfig) *Client {
	return &Client{client: typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)}
}

// NewClient creates a client and waits for the server health check with
// exponential backoff.
func NewClient(ctx context.Context, cfg *config.TypesenseConfig) (*Client, error) {
	c := New(cfg)
	err := retry.DoWithLog(ctx, retry.DefaultConfig(), "Typesense",
		func() error {
			hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			ok, err := c.client.Health(hctx, 2*time.Second)
			if err == nil && !ok {
				err = fmt.Errorf("typesense reported unhealthy")
			}
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("connected to Typesense")
	return c, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// InitSchema ensures the facilities collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := c.client.Collection(FacilitiesCollection).Retrieve(ctx); err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: FacilitiesCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "display_name", Type: "string", Locale: pointer.String("pt")},
			{Name: "legal_name", Type: "string", Optional: pointer.True(), Locale: pointer.String("pt")},
			{Name: "municipality", Type: "string", Facet: pointer.True()},
			{Name: "uf", Type: "string", Facet: pointer.True()},
			{Name: "label", Type: "string", Facet: pointer.True()},
			{Name: "label_rank", Type: "int32"},
			{Name: "location", Type: "geopoint"},
		},
		DefaultSortingField: pointer.String("label_rank"),
	}
	if _, err := c.client.Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", FacilitiesCollection).Msg("created Typesense collection")
	return nil
}
