package routes_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/adapters/cache"
	"github.com/zatekoja/maternidades/internal/api/handlers"
	"github.com/zatekoja/maternidades/internal/api/middleware"
	"github.com/zatekoja/maternidades/internal/api/routes"
	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/query/services"
)

type staticRepo struct {
	facilities []*entities.Facility
}

func (r staticRepo) LoadGeo(ctx context.Context) ([]*entities.Facility, error) {
	return r.facilities, nil
}

func (r staticRepo) LoadReady(ctx context.Context) ([]*entities.Facility, error) {
	return r.facilities, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	lat, lon := -23.5505, -46.6333
	repo := staticRepo{facilities: []*entities.Facility{{
		CNESID:       "1000001",
		DisplayName:  "Hospital São Camilo",
		Lat:          &lat,
		Lon:          &lon,
		HasMaternity: true,
		Sphere:       entities.SpherePrivate,
		AcceptsSUS:   entities.SUSYes,
		Municipality: "SAO PAULO",
		UF:           "SP",
	}}}
	svc := services.NewProximityService(repo, services.Options{})
	require.NoError(t, svc.Refresh(context.Background()))

	version := func() string { return svc.Health().DataVersion }
	router := routes.NewRouter(routes.Deps{
		Maternity:      handlers.NewMaternityHandler(svc, nil, "token"),
		Cache:          middleware.NewCacheMiddleware(cache.NewMemoryAdapter(0), version, middleware.DefaultCacheRoutes()),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	srv := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRouter_Endpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/maternidades/proximas?lat=-23.55&lon=-46.63")
	require.NoError(t, err)
	var search entities.SearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&search))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-store")
	require.Len(t, search.Results, 1)
	assert.Equal(t, "1000001", search.Results[0].CNESID)

	resp, err = http.Get(srv.URL + "/api/maternidades/1000001")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp, err = http.Get(srv.URL + "/api/maternidades/1000001")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp, err = http.Get(srv.URL + "/api/maternidades/busca?q=camilo")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/maternidades/proximas", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/facilities")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
