package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/adapters/cache"
)

func countingHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestCacheMiddleware_RouteSelection(t *testing.T) {
	version := "v1"
	m := NewCacheMiddleware(cache.NewMemoryAdapter(0), func() string { return version }, nil)
	calls := 0
	h := m.Middleware(countingHandler(&calls))

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	assert.Equal(t, "MISS", get("/api/maternidades/1000001").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get("/api/maternidades/1000001").Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	// proximity searches are never stored
	get("/api/maternidades/proximas?lat=-23.5&lon=-46.6")
	w := get("/api/maternidades/proximas?lat=-23.5&lon=-46.6")
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)

	// a new dataset version invalidates previous entries
	version = "v2"
	assert.Equal(t, "MISS", get("/api/maternidades/1000001").Header().Get("X-Cache"))
	assert.Equal(t, 4, calls)
}

func TestCacheMiddleware_QueryOrderIsIrrelevant(t *testing.T) {
	m := NewCacheMiddleware(cache.NewMemoryAdapter(0), nil, nil)
	a := httptest.NewRequest(http.MethodGet, "/api/maternidades/busca?q=luzia&uf=SP", nil)
	b := httptest.NewRequest(http.MethodGet, "/api/maternidades/busca?uf=SP&q=luzia", nil)
	assert.Equal(t, m.generateCacheKey(a), m.generateCacheKey(b))
}

func TestCacheControl(t *testing.T) {
	cases := map[string]string{
		"/api/maternidades/proximas": "no-store",
		"/api/geocode":               "no-store",
		"/api/admin/dataset/refresh": "no-store",
		"/api/maternidades/busca":    "public, max-age=120, must-revalidate",
		"/api/maternidades/1000001":  "public, max-age=300, must-revalidate",
		"/health":                    "private, no-cache, must-revalidate",
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		CacheControl(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Header().Get("Cache-Control"), path)
	}
}

func TestResponseOptimization_CompressesAndTags(t *testing.T) {
	calls := 0
	h := ResponseOptimization(countingHandler(&calls))

	req := httptest.NewRequest(http.MethodGet, "/api/maternidades/1000001", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	req = httptest.NewRequest(http.MethodGet, "/api/maternidades/1000001", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestResponseOptimization_SkipsStreams(t *testing.T) {
	calls := 0
	h := ResponseOptimization(countingHandler(&calls))

	req := httptest.NewRequest(http.MethodGet, "/api/stream/dataset", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Empty(t, w.Header().Get("ETag"))
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://maternidades.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maternidades.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://maternidades.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
