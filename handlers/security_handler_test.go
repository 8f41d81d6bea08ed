package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/eloboost/internal/policy"
	"github.com/upb/eloboost/middleware"
	"github.com/upb/eloboost/token"
	"go.uber.org/zap"
)

func withIdentity(req *http.Request, id token.Identity) *http.Request {
	claims := &token.Claims{
		UserID:    id.UserID,
		Username:  id.Username,
		IsOwner:   id.IsOwner,
		IsBooster: id.IsBooster,
	}
	claims.Subject = id.UserID
	return req.WithContext(middleware.WithClaims(req.Context(), claims))
}

func TestHandleCheckRole(t *testing.T) {
	h := NewSecurityHandler(policy.DefaultTable(), zap.NewNop())

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.HandleCheckRole(w, httptest.NewRequest(http.MethodGet, "/api/security/check-role", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "anonymous", body["role"])
		assert.Nil(t, body["id"])
		assert.Nil(t, body["username"])
		assert.Equal(t, false, body["is_owner"])
	})

	t.Run("owner wins over booster", func(t *testing.T) {
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/api/security/check-role", nil),
			token.Identity{UserID: "u-1", Username: "boss", IsOwner: true, IsBooster: true})
		w := httptest.NewRecorder()
		h.HandleCheckRole(w, req)

		var body RoleResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.NotNil(t, body.ID)
		assert.Equal(t, "u-1", *body.ID)
		assert.Equal(t, "boss", *body.Username)
		assert.Equal(t, "owner", string(body.Role))
	})
}

func TestHandleAccessCheck(t *testing.T) {
	h := NewSecurityHandler(policy.DefaultTable(), zap.NewNop())
	r := chi.NewRouter()
	r.Get("/api/security/access-check/*", h.HandleAccessCheck)

	tests := []struct {
		name         string
		path         string
		id           *token.Identity
		wantGranted  bool
		wantUser     string
		wantRequired interface{}
		wantRoute    string
	}{
		{
			name:         "public page for anonymous",
			path:         "login",
			wantGranted:  true,
			wantUser:     "anonymous",
			wantRequired: nil,
			wantRoute:    "login",
		},
		{
			name:         "unknown path is public",
			path:         "unknown/path",
			wantGranted:  true,
			wantUser:     "anonymous",
			wantRequired: nil,
			wantRoute:    "unknown/path",
		},
		{
			name:         "owner page for anonymous",
			path:         "owner/dashboard",
			wantGranted:  false,
			wantUser:     "anonymous",
			wantRequired: "owner",
			wantRoute:    "owner/dashboard",
		},
		{
			name:         "owner page for client",
			path:         "owner/dashboard",
			id:           &token.Identity{UserID: "c-1"},
			wantGranted:  false,
			wantUser:     "client",
			wantRequired: "owner",
			wantRoute:    "owner/dashboard",
		},
		{
			name:         "booster api subtree for booster",
			path:         "api/booster/anything/else",
			id:           &token.Identity{UserID: "b-1", IsBooster: true},
			wantGranted:  true,
			wantUser:     "booster",
			wantRequired: "booster",
			wantRoute:    "api/booster/anything/else",
		},
		{
			name:         "client page is not open to owner",
			path:         "dashboard",
			id:           &token.Identity{UserID: "o-1", IsOwner: true},
			wantGranted:  false,
			wantUser:     "owner",
			wantRequired: "client",
			wantRoute:    "dashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/security/access-check/"+tt.path, nil)
			if tt.id != nil {
				req = withIdentity(req, *tt.id)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantGranted, body["access_granted"])
			assert.Equal(t, tt.wantUser, body["user_role"])
			assert.Equal(t, tt.wantRequired, body["required_role"])
			assert.Equal(t, tt.wantRoute, body["route_path"])
		})
	}
}
