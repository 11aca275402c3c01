package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/adapters/cache"
	"github.com/zatekoja/maternidades/internal/adapters/events"
	"github.com/zatekoja/maternidades/internal/adapters/providers/geolocation"
	"github.com/zatekoja/maternidades/internal/adapters/providers/routing"
	"github.com/zatekoja/maternidades/internal/adapters/search"
	"github.com/zatekoja/maternidades/internal/api/handlers"
	"github.com/zatekoja/maternidades/internal/api/middleware"
	"github.com/zatekoja/maternidades/internal/api/routes"
	"github.com/zatekoja/maternidades/internal/dataset"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/infrastructure/clients/redis"
	"github.com/zatekoja/maternidades/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/maternidades/internal/infrastructure/observability"
	"github.com/zatekoja/maternidades/internal/overrides"
	"github.com/zatekoja/maternidades/internal/query/adapters"
	"github.com/zatekoja/maternidades/internal/query/services"
	"github.com/zatekoja/maternidades/pkg/config"
	"github.com/zatekoja/maternidades/pkg/secrets"
)

const geocodeCacheTTLSeconds = 24 * 3600

func main() {
	config.LoadDotEnv()
	if _, err := secrets.Apply(context.Background(), secrets.ConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load vault secrets: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("maternidades-api", cfg.App.Env, cfg.App.LogLevel)

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	// Redis backs the shared caches and the dataset event bus. Without it
	// the process runs on in-memory equivalents.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter(time.Minute)
		eventBus = events.NewMemoryEventBus()
	}
	defer eventBus.Close()

	router, err := routing.NewProvider(cfg.TravelTime, httpClient)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid travel time configuration")
	}

	store := dataset.NewArtifactStore(cfg.App.DataDir)
	overrideLoader := overrides.NewLoader(overrides.SnapshotSource(cfg.Snapshot.Tag, cfg.Snapshot.SearchPaths))
	opts := services.Options{
		Overrides: overrideLoader,
		Metrics:   metrics,
	}
	if router != nil {
		ttl := time.Duration(cfg.TravelTime.CacheTTLS) * time.Second
		opts.Routing = router
		opts.RoutingTimeout = time.Duration(cfg.TravelTime.TimeoutSec) * time.Second
		opts.TravelTimes = adapters.NewTravelTimeCache(ttl, ttl)
		log.Info().Str("provider", router.Name()).Msg("travel time enabled")
	}
	svc := services.NewProximityService(store, opts)
	if err := svc.Refresh(ctx); err != nil {
		// The service stays cold and /health answers 503 until a reload works.
		log.Error().Err(err).Str("data_dir", cfg.App.DataDir).Msg("initial dataset load failed")
	}

	go reloadOnPublish(ctx, eventBus, svc)

	var index providers.FacilitySearchIndex
	if cfg.Typesense.URL != "" {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("typesense unavailable, name search runs in memory")
		} else {
			index = search.NewTypesenseAdapter(tsClient)
		}
	}

	var geolocationHandler *handlers.GeolocationHandler
	geoProvider, err := geolocation.NewProvider(cfg.Geocoder, httpClient)
	if err != nil {
		log.Warn().Err(err).Msg("online geocoding disabled")
	} else if geoProvider != nil {
		geolocationHandler = handlers.NewGeolocationHandler(
			geolocation.NewCachedProvider(geoProvider, cacheProvider, geocodeCacheTTLSeconds))
	}

	version := func() string { return svc.Health().DataVersion }
	handler := routes.NewRouter(routes.Deps{
		Maternity:      handlers.NewMaternityHandler(svc, index, cfg.Server.AdminToken),
		Geolocation:    geolocationHandler,
		SSE:            handlers.NewSSEHandler(eventBus),
		Cache:          middleware.NewCacheMiddleware(cacheProvider, version, middleware.DefaultCacheRoutes()),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
	}).SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Event streams stay open, so no write timeout.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("server stopped")
}

// reloadOnPublish refreshes the service whenever a builder announces a new
// dataset.
func reloadOnPublish(ctx context.Context, bus providers.EventBus, svc *services.ProximityService) {
	ch, err := bus.Subscribe(ctx, providers.EventChannelDatasetUpdates)
	if err != nil {
		log.Warn().Err(err).Msg("dataset event subscription failed, reload with the admin endpoint")
		return
	}
	for event := range ch {
		log.Info().
			Str("build_id", event.BuildID).
			Str("data_version", event.DataVersion).
			Msg("dataset published, reloading")
		if err := svc.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("dataset reload failed")
		}
	}
}
