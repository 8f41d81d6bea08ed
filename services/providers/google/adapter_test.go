package google

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

func TestGoogleAdapter_AuthCodeURL(t *testing.T) {
	a := NewGoogleAdapter(providers.Config{ClientID: "google-client", RedirectURL: "http://localhost/cb"})

	u, err := url.Parse(a.AuthCodeURL("s1"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "google", a.Name())
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "/o/oauth2/v2/auth", u.Path)
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "s1", q.Get("state"))
}

func TestGoogleAdapter_LoginFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "google-code", r.PostForm.Get("code"))
		assert.Equal(t, "http://localhost:5000/api/auth/google/callback", r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.test","token_type":"Bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/oauth2/v1/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(GoogleUser{
			ID:            "110169484474386276334",
			Name:          "Ana Lopez",
			Email:         "ana@example.com",
			VerifiedEmail: true,
			Picture:       "https://lh3.googleusercontent.com/a/photo.jpg",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewGoogleAdapter(providers.Config{
		ClientID:     "google-client",
		ClientSecret: "google-secret",
		RedirectURL:  "http://localhost:5000/api/auth/google/callback",
		TokenURL:     srv.URL + "/token",
		APIBaseURL:   srv.URL,
	})
	ctx := context.Background()

	accessToken, err := a.ExchangeCode(ctx, "google-code")
	require.NoError(t, err)

	profile, err := a.FetchProfile(ctx, accessToken)
	require.NoError(t, err)
	assert.Equal(t, &providers.Profile{
		ProviderID:  "110169484474386276334",
		DisplayName: "Ana Lopez",
		Email:       "ana@example.com",
		Avatar:      "https://lh3.googleusercontent.com/a/photo.jpg",
	}, profile)

	t.Run("rejected access token", func(t *testing.T) {
		_, err := a.FetchProfile(ctx, "revoked")
		var pe *providers.Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "google", pe.Provider)
		assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	})
}
