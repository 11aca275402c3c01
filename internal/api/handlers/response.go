package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zatekoja/maternidades/pkg/errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, code apperrors.ErrorType, message string) {
	respondWithJSON(w, statusCode, errorBody{Error: errorDetail{Code: string(code), Message: message}})
}

// respondWithAppError maps an error to its status code. Only AppError
// messages reach the client.
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		log.Error().Err(err).Msg("unclassified handler error")
		respondWithError(w, http.StatusInternalServerError, apperrors.ErrorTypeInternal, "internal error")
		return
	}
	respondWithError(w, statusFor(appErr.Type), appErr.Type, appErr.Message)
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeBadRequest, apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeDatasetUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeGeocodeUnavailable, apperrors.ErrorTypeExternal, apperrors.ErrorTypeRoutingProviderFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
