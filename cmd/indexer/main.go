package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/maternidades/internal/adapters/search"
	"github.com/zatekoja/maternidades/internal/dataset"
	"github.com/zatekoja/maternidades/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/maternidades/internal/infrastructure/observability"
	"github.com/zatekoja/maternidades/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string

	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Export the published facility artifact into the Typesense name index",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			observability.InitLogger("maternidades-indexer", cfg.App.Env, cfg.App.LogLevel)
			if cfg.Typesense.URL == "" {
				return fmt.Errorf("TYPESENSE_URL is required")
			}

			intervalValue := strings.TrimSpace(intervalFlag)
			if intervalValue == "" {
				intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
			}
			var interval time.Duration
			if intervalValue != "" {
				interval, err = time.ParseDuration(intervalValue)
				if err != nil {
					return fmt.Errorf("invalid interval %q: %w", intervalValue, err)
				}
				if interval <= 0 {
					return fmt.Errorf("interval must be greater than zero")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for {
				if err := indexOnce(ctx, cfg, reset); err != nil {
					if interval <= 0 {
						return err
					}
					log.Error().Err(err).Msg("reindex failed")
				}
				if interval <= 0 {
					return nil
				}
				reset = false
				log.Info().Dur("next_run_in", interval).Msg("reindex complete")
				select {
				case <-ctx.Done():
					log.Info().Msg("reindexer shutting down")
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the existing collection before reindexing")
	cmd.Flags().StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool) error {
	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.FacilitiesCollection).Msg("deleting collection")
		if _, err := tsClient.Client().Collection(typesense.FacilitiesCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}

	adapter := search.NewTypesenseAdapter(tsClient)
	if err := adapter.InitSchema(ctx); err != nil {
		return err
	}

	store := dataset.NewArtifactStore(cfg.App.DataDir)
	facilities, err := store.LoadGeo(ctx)
	if err != nil {
		return err
	}

	log.Info().Int("facilities", len(facilities)).Msg("indexing facilities")
	start := time.Now()
	if err := adapter.Index(ctx, facilities); err != nil {
		return err
	}
	log.Info().Dur("duration", time.Since(start)).Msg("index updated")
	return nil
}
