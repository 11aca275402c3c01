package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/query/services"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

// DefaultRadiusKm applies when raio_km is omitted.
const DefaultRadiusKm = 10.0

// MaternityService is the query surface the handler needs
type MaternityService interface {
	Search(ctx context.Context, req entities.SearchRequest) (*entities.SearchResponse, error)
	Get(ctx context.Context, cnes string) (*entities.ProximityResult, error)
	GetMany(ctx context.Context, ids []string) ([]entities.ProximityResult, error)
	SearchByName(ctx context.Context, query, uf string, limit int) ([]entities.ProximityResult, error)
	Refresh(ctx context.Context) error
	Health() services.Health
}

var _ MaternityService = (*services.ProximityService)(nil)

// MaternityHandler serves the maternity locator endpoints
type MaternityHandler struct {
	service    MaternityService
	index      providers.FacilitySearchIndex
	adminToken string
}

// NewMaternityHandler creates a handler. index may be nil; an empty
// adminToken disables the admin endpoint.
func NewMaternityHandler(service MaternityService, index providers.FacilitySearchIndex, adminToken string) *MaternityHandler {
	return &MaternityHandler{service: service, index: index, adminToken: adminToken}
}

// Health handles GET /health
func (h *MaternityHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.service.Health()
	if health.State == services.StateCold {
		respondWithError(w, http.StatusServiceUnavailable, apperrors.ErrorTypeDatasetUnavailable, "facility dataset is not loaded")
		return
	}
	respondWithJSON(w, http.StatusOK, health)
}

// Nearby handles GET /api/maternidades/proximas
func (h *MaternityHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	resp, err := h.service.Search(r.Context(), req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// SearchByName handles GET /api/maternidades/busca
func (h *MaternityHandler) SearchByName(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeBadRequest, "q parameter is required")
		return
	}
	uf := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("uf")))
	limit, err := parseLimit(r.URL.Query().Get("limite"))
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	results, err := h.searchIndex(r.Context(), q, uf, limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

func (h *MaternityHandler) searchIndex(ctx context.Context, q, uf string, limit int) ([]entities.ProximityResult, error) {
	if h.index != nil {
		ids, err := h.index.Search(ctx, q, uf, limit)
		if err == nil {
			return h.service.GetMany(ctx, ids)
		}
		log.Warn().Err(err).Msg("search index unavailable, using in-memory name search")
	}
	return h.service.SearchByName(ctx, q, uf, limit)
}

// Get handles GET /api/maternidades/{cnes}
func (h *MaternityHandler) Get(w http.ResponseWriter, r *http.Request) {
	cnes := strings.TrimSpace(r.PathValue("cnes"))
	if cnes == "" {
		respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeBadRequest, "cnes is required")
		return
	}
	result, err := h.service.Get(r.Context(), cnes)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// RefreshDataset handles POST /api/admin/dataset/refresh
func (h *MaternityHandler) RefreshDataset(w http.ResponseWriter, r *http.Request) {
	if h.adminToken == "" {
		respondWithError(w, http.StatusForbidden, apperrors.ErrorTypeValidation, "admin endpoint disabled")
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
		respondWithError(w, http.StatusUnauthorized, apperrors.ErrorTypeValidation, "invalid admin token")
		return
	}
	if err := h.service.Refresh(r.Context()); err != nil {
		log.Error().Err(err).Msg("admin dataset refresh failed")
		respondWithError(w, http.StatusServiceUnavailable, apperrors.ErrorTypeDatasetUnavailable, "dataset reload failed")
		return
	}
	respondWithJSON(w, http.StatusOK, h.service.Health())
}

func parseSearchRequest(r *http.Request) (entities.SearchRequest, error) {
	q := r.URL.Query()
	var req entities.SearchRequest

	lat, err := parseFloat(q.Get("lat"), "lat", true, 0)
	if err != nil {
		return req, err
	}
	lon, err := parseFloat(q.Get("lon"), "lon", true, 0)
	if err != nil {
		return req, err
	}
	radius, err := parseFloat(q.Get("raio_km"), "raio_km", false, DefaultRadiusKm)
	if err != nil {
		return req, err
	}
	limit, err := parseLimit(q.Get("limite"))
	if err != nil {
		return req, err
	}
	req = entities.SearchRequest{Lat: lat, Lon: lon, RadiusKm: radius, Limit: limit}

	switch strings.ToLower(strings.TrimSpace(q.Get("tipo"))) {
	case "", "maternity_or_probable", "provavel":
		req.Filters.Kind = entities.KindMaternityOrProbable
	case "maternity", "maternidade":
		req.Filters.Kind = entities.KindMaternity
	case "any", "todos":
		req.Filters.Kind = entities.KindAny
	default:
		return req, apperrors.NewBadRequestError("tipo must be any, maternity or maternity_or_probable")
	}

	if v := strings.TrimSpace(q.Get("sus")); v != "" && !strings.EqualFold(v, "any") {
		sus, ok := entities.ParseSUSAcceptance(v)
		if !ok {
			return req, apperrors.NewBadRequestError("sus must be sim, nao or any")
		}
		req.Filters.AcceptsSUS = sus
	}
	if v := strings.TrimSpace(q.Get("expandir")); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "sim", "s":
			req.Filters.Expand = true
		case "0", "false", "nao", "não", "n":
		default:
			return req, apperrors.NewBadRequestError("expandir must be true or false")
		}
	}
	if v := strings.TrimSpace(q.Get("esfera")); v != "" {
		sphere, ok := entities.ParseSphere(v)
		if !ok {
			return req, apperrors.NewBadRequestError("esfera must be publico, privado or filantropico")
		}
		req.Filters.PreferSphere = sphere
	}
	return req, nil
}

// parseFloat accepts both "." and "," as the decimal separator.
func parseFloat(raw, name string, required bool, def float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return 0, apperrors.NewBadRequestError(name + " parameter is required")
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return 0, apperrors.NewBadRequestError("invalid " + name + " parameter")
	}
	return v, nil
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return services.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > services.MaxLimit {
		return 0, apperrors.NewBadRequestError("limite must be between 1 and 50")
	}
	return n, nil
}
