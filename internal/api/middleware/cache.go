package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/domain/providers"
)

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// CacheMiddleware caches successful GET responses in a CacheProvider. Keys
// include the dataset version so a refresh never serves older answers.
type CacheMiddleware struct {
	cache        providers.CacheProvider
	version      func() string
	routeConfigs map[string]CacheConfig
	prefixes     []string
}

// DefaultCacheRoutes are the cached routes. Proximity searches are not
// cached: their keys would be user coordinates.
func DefaultCacheRoutes() map[string]CacheConfig {
	return map[string]CacheConfig{
		"/api/maternidades/proximas": {Enabled: false},
		"/api/maternidades/busca":    {TTLSeconds: 300, Enabled: true},
		"/api/maternidades/":         {TTLSeconds: 600, Enabled: true},
		"/api/geocode":               {TTLSeconds: 3600, Enabled: true},
	}
}

// NewCacheMiddleware creates a cache middleware. version may be nil.
func NewCacheMiddleware(cache providers.CacheProvider, version func() string, configs map[string]CacheConfig) *CacheMiddleware {
	if configs == nil {
		configs = DefaultCacheRoutes()
	}
	m := &CacheMiddleware{cache: cache, version: version, routeConfigs: configs}
	for p := range configs {
		if strings.HasSuffix(p, "/") {
			m.prefixes = append(m.prefixes, p)
		}
	}
	// Longest prefix wins.
	sort.Slice(m.prefixes, func(i, j int) bool { return len(m.prefixes[i]) > len(m.prefixes[j]) })
	return m
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}
		config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		cacheKey := m.generateCacheKey(r)
		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK, body: &bytes.Buffer{}}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				log.Warn().Err(err).Str("route", r.URL.Path).Msg("failed to cache response")
			}
		}
	})
}

func (m *CacheMiddleware) getRouteConfig(path string) CacheConfig {
	if config, ok := m.routeConfigs[path]; ok {
		return config
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(path, p) {
			return m.routeConfigs[p]
		}
	}
	return CacheConfig{}
}

func (m *CacheMiddleware) generateCacheKey(r *http.Request) string {
	version := ""
	if m.version != nil {
		version = m.version()
	}
	key := fmt.Sprintf("%s:%s:%s?%s", version, r.Method, r.URL.Path, r.URL.Query().Encode())
	hash := sha256.Sum256([]byte(key))
	return "http:cache:" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
