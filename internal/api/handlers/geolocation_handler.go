package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
	"github.com/zatekoja/maternidades/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

const maxAddressLength = 300

// GeolocationHandler handles geolocation endpoints.
type GeolocationHandler struct {
	provider providers.GeolocationProvider
}

// NewGeolocationHandler creates a new geolocation handler.
func NewGeolocationHandler(provider providers.GeolocationProvider) *GeolocationHandler {
	return &GeolocationHandler{provider: provider}
}

// Geocode handles GET /api/geocode?address=... (endereco is accepted too).
// The resolved point is what the client feeds back into /proximas.
func (h *GeolocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		address = strings.TrimSpace(r.URL.Query().Get("endereco"))
	}
	if address == "" {
		respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeBadRequest, "address parameter is required")
		return
	}
	if len(address) > maxAddressLength {
		respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeBadRequest, "address is too long")
		return
	}

	coords, err := h.provider.Geocode(r.Context(), address)
	if errors.Is(err, providers.ErrAddressNotFound) {
		respondWithError(w, http.StatusNotFound, apperrors.ErrorTypeNotFound, "address not found")
		return
	}
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Str("provider", h.provider.Name()).Msg("geocode failed")
		respondWithAppError(w, apperrors.NewGeocodeUnavailableError("failed to geocode address", err))
		return
	}
	if !entities.InBrazil(coords.Latitude, coords.Longitude) {
		respondWithError(w, http.StatusNotFound, apperrors.ErrorTypeNotFound, "address not found")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"lat":    coords.Latitude,
		"lon":    coords.Longitude,
		"source": coords.Source,
	})
}
