package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/api/handlers"
	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/query/services"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

type MockMaternityService struct {
	mock.Mock
}

func (m *MockMaternityService) Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SearchResponse), args.Error(1)
}

func (m *MockMaternityService) Get(ctx context.Context, cnes string) (*entities.ProximityResult, error) {
	args := m.Called(ctx, cnes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProximityResult), args.Error(1)
}

func (m *MockMaternityService) GetMany(ctx context.Context, ids []string) ([]entities.ProximityResult, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]entities.ProximityResult), args.Error(1)
}

func (m *MockMaternityService) SearchByName(ctx context.Context, query, uf string, limit int) ([]entities.ProximityResult, error) {
	args := m.Called(ctx, query, uf, limit)
	return args.Get(0).([]entities.ProximityResult), args.Error(1)
}

func (m *MockMaternityService) Refresh(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockMaternityService) Health() services.Health {
	return m.Called().Get(0).(services.Health)
}

type MockSearchIndex struct {
	mock.Mock
}

func (m *MockSearchIndex) Search(ctx context.Context, query, uf string, limit int) ([]string, error) {
	args := m.Called(ctx, query, uf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSearchIndex) Index(ctx context.Context, facilities []*entities.Facility) error {
	return m.Called(ctx, facilities).Error(0)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestMaternityHandler_Nearby_Defaults(t *testing.T) {
	svc := new(MockMaternityService)
	h := handlers.NewMaternityHandler(svc, nil, "")

	want := entities.SearchRequest{
		Lat:      -23.5505,
		Lon:      -46.6333,
		RadiusKm: handlers.DefaultRadiusKm,
		Limit:    services.DefaultLimit,
		Filters:  entities.SearchFilters{Kind: entities.KindMaternityOrProbable},
	}
	svc.On("Search", mock.Anything, want).Return(&entities.SearchResponse{
		Results: []entities.ProximityResult{{CNESID: "1000001", DisplayName: "Hospital São Camilo"}},
		Meta:    entities.SearchMeta{RadiusUsed: 10, Count: 1, DataVersion: "v1"},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/maternidades/proximas?lat=-23.5505&lon=-46.6333", nil)
	w := httptest.NewRecorder()
	h.Nearby(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp entities.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "1000001", resp.Results[0].CNESID)
	assert.Equal(t, "v1", resp.Meta.DataVersion)
	svc.AssertExpectations(t)
}

func TestMaternityHandler_Nearby_Filters(t *testing.T) {
	svc := new(MockMaternityService)
	h := handlers.NewMaternityHandler(svc, nil, "")

	want := entities.SearchRequest{
		Lat:      -3.1,
		Lon:      -60.02,
		RadiusKm: 25,
		Limit:    5,
		Filters: entities.SearchFilters{
			Kind:         entities.KindMaternity,
			AcceptsSUS:   entities.SUSYes,
			Expand:       true,
			PreferSphere: entities.SpherePublic,
		},
	}
	svc.On("Search", mock.Anything, want).Return(&entities.SearchResponse{}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/maternidades/proximas?lat=-3,1&lon=-60.02&raio_km=25&limite=5&tipo=maternity&sus=sim&expandir=true&esfera=publico", nil)
	w := httptest.NewRecorder()
	h.Nearby(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestMaternityHandler_Nearby_BadRequest(t *testing.T) {
	cases := map[string]string{
		"missing lat":   "/api/maternidades/proximas?lon=-46.6",
		"invalid lon":   "/api/maternidades/proximas?lat=-23.5&lon=abc",
		"limit zero":    "/api/maternidades/proximas?lat=-23.5&lon=-46.6&limite=0",
		"limit too big": "/api/maternidades/proximas?lat=-23.5&lon=-46.6&limite=51",
		"unknown kind":  "/api/maternidades/proximas?lat=-23.5&lon=-46.6&tipo=clinica",
		"unknown sus":   "/api/maternidades/proximas?lat=-23.5&lon=-46.6&sus=talvez",
		"bad expand":    "/api/maternidades/proximas?lat=-23.5&lon=-46.6&expandir=2",
		"bad sphere":    "/api/maternidades/proximas?lat=-23.5&lon=-46.6&esfera=outra",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(MockMaternityService)
			h := handlers.NewMaternityHandler(svc, nil, "")

			w := httptest.NewRecorder()
			h.Nearby(w, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(apperrors.ErrorTypeBadRequest), decodeError(t, w).Error.Code)
			svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
		})
	}
}

func TestMaternityHandler_Nearby_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   apperrors.ErrorType
	}{
		{"cold", apperrors.NewDatasetUnavailableError("not loaded"), http.StatusServiceUnavailable, apperrors.ErrorTypeDatasetUnavailable},
		{"out of range", apperrors.NewBadRequestError("lat out of range"), http.StatusBadRequest, apperrors.ErrorTypeBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrorTypeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockMaternityService)
			svc.On("Search", mock.Anything, mock.Anything).Return(nil, tc.err)
			h := handlers.NewMaternityHandler(svc, nil, "")

			w := httptest.NewRecorder()
			h.Nearby(w, httptest.NewRequest(http.MethodGet, "/api/maternidades/proximas?lat=-23.5&lon=-46.6", nil))

			assert.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, string(tc.code), body.Error.Code)
			assert.NotContains(t, body.Error.Message, "boom")
		})
	}
}

func TestMaternityHandler_SearchByName_UsesIndex(t *testing.T) {
	svc := new(MockMaternityService)
	index := new(MockSearchIndex)
	h := handlers.NewMaternityHandler(svc, index, "")

	index.On("Search", mock.Anything, "sao camilo", "SP", 10).Return([]string{"1000001"}, nil)
	svc.On("GetMany", mock.Anything, []string{"1000001"}).
		Return([]entities.ProximityResult{{CNESID: "1000001"}}, nil)

	w := httptest.NewRecorder()
	h.SearchByName(w, httptest.NewRequest(http.MethodGet, "/api/maternidades/busca?q=sao+camilo&uf=sp", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Results []entities.ProximityResult `json:"results"`
		Count   int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	svc.AssertNotCalled(t, "SearchByName", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	index.AssertExpectations(t)
}

func TestMaternityHandler_SearchByName_FallsBackWhenIndexFails(t *testing.T) {
	svc := new(MockMaternityService)
	index := new(MockSearchIndex)
	h := handlers.NewMaternityHandler(svc, index, "")

	index.On("Search", mock.Anything, "luzia", "", 3).Return(nil, errors.New("connection refused"))
	svc.On("SearchByName", mock.Anything, "luzia", "", 3).
		Return([]entities.ProximityResult{{CNESID: "1000002"}}, nil)

	w := httptest.NewRecorder()
	h.SearchByName(w, httptest.NewRequest(http.MethodGet, "/api/maternidades/busca?q=luzia&limite=3", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestMaternityHandler_SearchByName_RequiresQuery(t *testing.T) {
	h := handlers.NewMaternityHandler(new(MockMaternityService), nil, "")

	w := httptest.NewRecorder()
	h.SearchByName(w, httptest.NewRequest(http.MethodGet, "/api/maternidades/busca?q=+", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMaternityHandler_Get(t *testing.T) {
	svc := new(MockMaternityService)
	h := handlers.NewMaternityHandler(svc, nil, "")
	svc.On("Get", mock.Anything, "1000001").Return(&entities.ProximityResult{CNESID: "1000001"}, nil)
	svc.On("Get", mock.Anything, "9999999").Return(nil, apperrors.NewNotFoundError("facility not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/maternidades/1000001", nil)
	req.SetPathValue("cnes", "1000001")
	w := httptest.NewRecorder()
	h.Get(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/maternidades/9999999", nil)
	req.SetPathValue("cnes", "9999999")
	w = httptest.NewRecorder()
	h.Get(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.ErrorTypeNotFound), decodeError(t, w).Error.Code)
}

func TestMaternityHandler_Health(t *testing.T) {
	svc := new(MockMaternityService)
	h := handlers.NewMaternityHandler(svc, nil, "")
	svc.On("Health").Return(services.Health{State: services.StateCold}).Once()
	svc.On("Health").Return(services.Health{State: services.StateStale, Facilities: 6, DataVersion: "v1"}).Once()

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(apperrors.ErrorTypeDatasetUnavailable), decodeError(t, w).Error.Code)

	w = httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health services.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, services.StateStale, health.State)
	assert.Equal(t, 6, health.Facilities)
}

func TestMaternityHandler_RefreshDataset(t *testing.T) {
	t.Run("disabled without token", func(t *testing.T) {
		h := handlers.NewMaternityHandler(new(MockMaternityService), nil, "")
		w := httptest.NewRecorder()
		h.RefreshDataset(w, httptest.NewRequest(http.MethodPost, "/api/admin/dataset/refresh", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		svc := new(MockMaternityService)
		h := handlers.NewMaternityHandler(svc, nil, "s3cret")
		req := httptest.NewRequest(http.MethodPost, "/api/admin/dataset/refresh", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		h.RefreshDataset(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "Refresh", mock.Anything)
	})

	t.Run("reloads", func(t *testing.T) {
		svc := new(MockMaternityService)
		svc.On("Refresh", mock.Anything).Return(nil)
		svc.On("Health").Return(services.Health{State: services.StateServing, Facilities: 6})
		h := handlers.NewMaternityHandler(svc, nil, "s3cret")
		req := httptest.NewRequest(http.MethodPost, "/api/admin/dataset/refresh", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		w := httptest.NewRecorder()
		h.RefreshDataset(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("reload failure", func(t *testing.T) {
		svc := new(MockMaternityService)
		svc.On("Refresh", mock.Anything).Return(errors.New("artifact missing"))
		h := handlers.NewMaternityHandler(svc, nil, "s3cret")
		req := httptest.NewRequest(http.MethodPost, "/api/admin/dataset/refresh", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		w := httptest.NewRecorder()
		h.RefreshDataset(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
