package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"bookverse-notifications/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeycloakServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/bookverse/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "svc-token", ExpiresIn: 300})
	})
	mux.HandleFunc("/realms/bookverse/protocol/openid-connect/token/introspect", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("token") == "good" {
			_ = json.NewEncoder(w).Encode(TokenInfo{Active: true, Sub: "user-1", Email: "reader@bookverse.app"})
			return
		}
		_ = json.NewEncoder(w).Encode(TokenInfo{Active: false})
	})
	mux.HandleFunc("/admin/realms/bookverse/users/user-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(User{ID: "user-1", Email: "reader@bookverse.app", Enabled: true})
	})
	mux.HandleFunc("/admin/realms/bookverse/users/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestKeycloakClient_GetUser(t *testing.T) {
	var calls int32
	srv := newKeycloakServer(t, &calls)
	kc := NewKeycloakClient(srv.URL+"/", "bookverse", "engine", "secret")

	user, err := kc.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "reader@bookverse.app", user.Email)

	// cached service token
	_, err = kc.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestKeycloakClient_GetUser_NotFound(t *testing.T) {
	var calls int32
	srv := newKeycloakServer(t, &calls)
	kc := NewKeycloakClient(srv.URL, "bookverse", "engine", "secret")

	_, err := kc.GetUser(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRecipientNotFound))
}

func TestKeycloakClient_ValidateToken(t *testing.T) {
	var calls int32
	srv := newKeycloakServer(t, &calls)
	kc := NewKeycloakClient(srv.URL, "bookverse", "engine", "secret")

	info, err := kc.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.Sub)

	_, err = kc.ValidateToken(context.Background(), "revoked")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "AUTHENTICATION_ERROR"))
}
