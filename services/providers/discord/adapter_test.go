package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/eloboost/services/providers"
)

func newTestServer(t *testing.T, user DiscordUser) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "valid-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"discord-at","token_type":"Bearer","expires_in":604800,"scope":"identify email"}`))
	})
	mux.HandleFunc("/api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer discord-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(user)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(srv *httptest.Server) *DiscordAdapter {
	return NewDiscordAdapter(providers.Config{
		ClientID:     "discord-client",
		ClientSecret: "discord-secret",
		RedirectURL:  "http://localhost:5000/api/auth/discord/callback",
		TokenURL:     srv.URL + "/api/oauth2/token",
		APIBaseURL:   srv.URL + "/api",
	})
}

func TestDiscordAdapter_AuthCodeURL(t *testing.T) {
	a := NewDiscordAdapter(providers.Config{ClientID: "discord-client", RedirectURL: "http://localhost/cb"})

	u, err := url.Parse(a.AuthCodeURL("xyz"))
	require.NoError(t, err)

	assert.Equal(t, "discord", a.Name())
	assert.Equal(t, "discord.com", u.Host)
	assert.Equal(t, "identify email", u.Query().Get("scope"))
	assert.Equal(t, "xyz", u.Query().Get("state"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
}

func TestDiscordAdapter_LoginFlow(t *testing.T) {
	srv := newTestServer(t, DiscordUser{
		ID:       "80351110224678912",
		Username: "nelly",
		Email:    "nelly@example.com",
		Avatar:   "8342729096ea3675442027381ff50dfe",
	})
	a := newTestAdapter(srv)
	ctx := context.Background()

	accessToken, err := a.ExchangeCode(ctx, "valid-code")
	require.NoError(t, err)
	assert.Equal(t, "discord-at", accessToken)

	profile, err := a.FetchProfile(ctx, accessToken)
	require.NoError(t, err)
	assert.Equal(t, "80351110224678912", profile.ProviderID)
	assert.Equal(t, "nelly", profile.DisplayName)
	assert.Equal(t, "nelly@example.com", profile.Email)
	assert.Equal(t, "https://cdn.discordapp.com/avatars/80351110224678912/8342729096ea3675442027381ff50dfe.webp", profile.Avatar)
}

func TestDiscordAdapter_NoAvatar(t *testing.T) {
	srv := newTestServer(t, DiscordUser{ID: "1", Username: "plain"})
	a := newTestAdapter(srv)

	profile, err := a.FetchProfile(context.Background(), "discord-at")
	require.NoError(t, err)
	assert.Empty(t, profile.Avatar)
}

func TestDiscordAdapter_Errors(t *testing.T) {
	srv := newTestServer(t, DiscordUser{})
	a := newTestAdapter(srv)
	ctx := context.Background()

	t.Run("bad code", func(t *testing.T) {
		_, err := a.ExchangeCode(ctx, "stolen-code")
		var pe *providers.Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "discord", pe.Provider)
		assert.Equal(t, providers.StageExchange, pe.Stage)
	})

	t.Run("bad access token", func(t *testing.T) {
		_, err := a.FetchProfile(ctx, "expired")
		var pe *providers.Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	})

	t.Run("profile without id", func(t *testing.T) {
		_, err := a.FetchProfile(ctx, "discord-at")
		var pe *providers.Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, providers.StageProfile, pe.Stage)
	})
}
