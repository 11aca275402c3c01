package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/adapters/providers/geolocation"
	"github.com/zatekoja/maternidades/internal/api/handlers"
)

func TestGeolocationHandler_Geocode(t *testing.T) {
	provider := geolocation.NewMockGeolocationProvider()
	h := handlers.NewGeolocationHandler(provider)

	w := httptest.NewRecorder()
	h.Geocode(w, httptest.NewRequest(http.MethodGet, "/api/geocode?address=Av.+Paulista,+S%C3%A3o+Paulo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, -23.5505, body["lat"], 1e-9)
	assert.Equal(t, "mock", body["source"])

	w = httptest.NewRecorder()
	h.Geocode(w, httptest.NewRequest(http.MethodGet, "/api/geocode?endereco=Recife", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGeolocationHandler_Errors(t *testing.T) {
	h := handlers.NewGeolocationHandler(geolocation.NewMockGeolocationProvider())

	cases := map[string]int{
		"/api/geocode":                                     http.StatusBadRequest,
		"/api/geocode?address=Lisboa":                      http.StatusNotFound,
		"/api/geocode?address=Rua+Inexistente":             http.StatusNotFound,
		"/api/geocode?address=" + strings.Repeat("a", 301): http.StatusBadRequest,
	}
	for target, status := range cases {
		w := httptest.NewRecorder()
		h.Geocode(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, status, w.Code, target)
	}
}
