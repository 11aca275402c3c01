package routes

import (
	"net/http"

	"github.com/zatekoja/maternidades/internal/api/handlers"
	"github.com/zatekoja/maternidades/internal/api/middleware"
	"github.com/zatekoja/maternidades/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	maternityHandler   *handlers.MaternityHandler
	geolocationHandler *handlers.GeolocationHandler
	sseHandler         *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// Deps groups the router inputs. Geolocation, SSE and cache are optional.
type Deps struct {
	Maternity      *handlers.MaternityHandler
	Geolocation    *handlers.GeolocationHandler
	SSE            *handlers.SSEHandler
	Cache          *middleware.CacheMiddleware
	AllowedOrigins []string
	Metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(deps Deps) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		maternityHandler:   deps.Maternity,
		geolocationHandler: deps.Geolocation,
		sseHandler:         deps.SSE,
		cacheMiddleware:    deps.Cache,
		allowedOrigins:     deps.AllowedOrigins,
		metrics:            deps.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.maternityHandler.Health)

	// Maternity endpoints. The literal segments win over {cnes}.
	r.mux.HandleFunc("GET /api/maternidades/proximas", r.maternityHandler.Nearby)
	r.mux.HandleFunc("GET /api/maternidades/busca", r.maternityHandler.SearchByName)
	r.mux.HandleFunc("GET /api/maternidades/{cnes}", r.maternityHandler.Get)

	r.mux.HandleFunc("POST /api/admin/dataset/refresh", r.maternityHandler.RefreshDataset)

	if r.geolocationHandler != nil {
		r.mux.HandleFunc("GET /api/geocode", r.geolocationHandler.Geocode)
	}

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/dataset", r.sseHandler.StreamDatasetUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
