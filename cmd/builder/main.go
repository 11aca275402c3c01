package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/maternidades/internal/adapters/database"
	"github.com/zatekoja/maternidades/internal/adapters/events"
	"github.com/zatekoja/maternidades/internal/adapters/providers/geolocation"
	"github.com/zatekoja/maternidades/internal/dataset"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/geocoding"
	"github.com/zatekoja/maternidades/internal/infrastructure/clients/redis"
	"github.com/zatekoja/maternidades/internal/infrastructure/clients/sqldb"
	"github.com/zatekoja/maternidades/internal/infrastructure/observability"
	"github.com/zatekoja/maternidades/pkg/config"
	"github.com/zatekoja/maternidades/pkg/retry"
	"github.com/zatekoja/maternidades/pkg/secrets"
)

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitGatesFailed = 2
)

type flags struct {
	snapshot    string
	searchPaths []string
	configPath  string
	dataDir     string
	geocoder    string
	budget      int
}

func main() {
	var f flags
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "builder",
		Short:         "Build the maternity facility dataset from a CNES snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			if _, err := secrets.Apply(cmd.Context(), secrets.ConfigFromEnv()); err != nil {
				return err
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, loaded, f)
			cfg = loaded
			observability.InitLogger("maternidades-builder", cfg.App.Env, cfg.App.LogLevel)
			return nil
		},
	}

	bindFlags(rootCmd, &f)

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Run the offline pipeline and publish the artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cfg)
		},
	}
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print the last build report",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := dataset.ReadReport(cfg.App.DataDir)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	rootCmd.AddCommand(buildCmd, reportCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func bindFlags(cmd *cobra.Command, f *flags) {
	cmd.PersistentFlags().StringVar(&f.snapshot, "snapshot", "", "snapshot tag YYYYMM (overrides SNAPSHOT)")
	cmd.PersistentFlags().StringSliceVar(&f.searchPaths, "snapshot-path", nil, "snapshot search path, repeatable (overrides SNAPSHOT_PATHS)")
	cmd.PersistentFlags().StringVar(&f.configPath, "config", "", "classifier config JSON (overrides CLASSIFIER_CONFIG)")
	cmd.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "artifact directory (overrides DATA_DIR)")
	cmd.PersistentFlags().StringVar(&f.geocoder, "geocoder", "", "nominatim, google, mapbox or off (overrides GEOCODER)")
	cmd.PersistentFlags().IntVar(&f.budget, "budget", 0, "max provider geocode calls (overrides GEOCODE_BUDGET)")
}

// applyFlags overrides cfg with the flags set on the command line. Unset
// flags keep the environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	pf := cmd.Flags()
	if pf.Changed("snapshot") {
		cfg.Snapshot.Tag = f.snapshot
	}
	if pf.Changed("snapshot-path") {
		cfg.Snapshot.SearchPaths = f.searchPaths
	}
	if pf.Changed("config") {
		cfg.Snapshot.ClassifierConfig = f.configPath
	}
	if pf.Changed("data-dir") {
		cfg.App.DataDir = f.dataDir
	}
	if pf.Changed("geocoder") {
		cfg.Geocoder.Provider = f.geocoder
	}
	if pf.Changed("budget") {
		cfg.Geocoder.Budget = f.budget
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, dataset.ErrGatesFailed):
		log.Error().Err(err).Msg("build not published")
		return exitGatesFailed
	default:
		fmt.Fprintf(os.Stderr, "builder: %v\n", err)
		return exitFailure
	}
}

func runBuild(ctx context.Context, cfg *config.Config) error {
	if cfg.Snapshot.Tag == "" {
		return fmt.Errorf("a snapshot tag is required (--snapshot or SNAPSHOT)")
	}

	dbClient, err := sqldb.NewClient(ctx, cfg.Geocoder.CacheDSN)
	if err != nil {
		return err
	}
	defer dbClient.Close()
	addressCache, err := database.NewAddressCacheAdapter(ctx, dbClient)
	if err != nil {
		return err
	}

	provider, err := geolocation.NewProvider(cfg.Geocoder, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return err
	}
	geocoder := geocoding.New(addressCache, provider, geocoding.Options{
		Budget:            cfg.Geocoder.Budget,
		RequestsPerSecond: geolocation.RequestsPerSecond(cfg.Geocoder.Provider),
		Retry:             retry.GeocoderConfig(),
	})

	var bus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, dataset_published will not be announced")
		} else {
			defer redisClient.Close()
			bus = events.NewRedisEventBus(redisClient)
			defer bus.Close()
		}
	}

	builder := dataset.NewBuilder(dataset.Options{
		Tag:         cfg.Snapshot.Tag,
		SearchPaths: cfg.Snapshot.SearchPaths,
		ConfigPath:  cfg.Snapshot.ClassifierConfig,
		OutputDir:   cfg.App.DataDir,
		Geocoder:    geocoder,
		Events:      bus,
	})
	report, err := builder.Build(ctx)
	if report != nil {
		stats := geocoder.Stats()
		log.Info().
			Str("build_id", report.BuildID).
			Int("geocode_cache_hits", stats.CacheHits).
			Int("geocode_provider_hits", stats.ProviderHits).
			Int("geocode_failures", stats.Failures).
			Msg("geocoding summary")
	}
	return err
}
