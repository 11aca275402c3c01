package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/secret/data/maternidades" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApply_LoadsAllowedKeys(t *testing.T) {
	srv := vaultServer(t, `{"data":{"data":{"GEOCODER_TOKEN":"g-123","ADMIN_TOKEN":"adm","UNRELATED":"x","TRAVEL_TIME_TOKEN":42}}}`)
	t.Setenv("GEOCODER_TOKEN", "")
	t.Setenv("ADMIN_TOKEN", "preset")
	t.Setenv("TRAVEL_TIME_TOKEN", "")
	os.Unsetenv("UNRELATED")

	res, err := Apply(context.Background(), VaultConfig{
		Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret",
		Path: "maternidades", KVVersion: 2, Keys: DefaultKeys,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "g-123", os.Getenv("GEOCODER_TOKEN"))
	assert.Equal(t, "42", os.Getenv("TRAVEL_TIME_TOKEN"))
	assert.Equal(t, "preset", os.Getenv("ADMIN_TOKEN"))
	assert.Empty(t, os.Getenv("UNRELATED"))
}

func TestApply_Errors(t *testing.T) {
	srv := vaultServer(t, `{"data":{}}`)

	_, err := Apply(context.Background(), VaultConfig{Enabled: true, Addr: srv.URL})
	assert.Error(t, err)

	_, err = Apply(context.Background(), VaultConfig{Enabled: true, Addr: srv.URL, Token: "bad", Mount: "secret", Path: "maternidades", KVVersion: 2})
	assert.Error(t, err)

	_, err = Apply(context.Background(), VaultConfig{Enabled: true, Addr: srv.URL, Token: "root", Mount: "secret", Path: "maternidades", KVVersion: 2})
	assert.Error(t, err)

	res, err := Apply(context.Background(), VaultConfig{})
	require.NoError(t, err)
	assert.Zero(t, res.Loaded)
}

func TestSecretURL(t *testing.T) {
	assert.Equal(t, "http://v:8200/v1/secret/data/app", secretURL("http://v:8200/", "/secret/", "/app", 2))
	assert.Equal(t, "http://v:8200/v1/kv/app", secretURL("http://v:8200", "kv", "app", 1))
}
