package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/eloboost/internal/policy"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/presence"
	"github.com/upb/eloboost/token"
	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(tokenString string) (*token.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.Claims), args.Error(1)
}

type recordingRefresher struct {
	refreshed []token.Identity
	err       error
}

func (r *recordingRefresher) Refresh(w http.ResponseWriter, id token.Identity) (string, error) {
	r.refreshed = append(r.refreshed, id)
	if r.err != nil {
		return "", r.err
	}
	http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "refreshed"})
	return "refreshed", nil
}

type fixture struct {
	codec    *token.Codec
	presence *presence.Tracker
	security *Security
}

func newFixture(t *testing.T, opts ...SecurityOption) *fixture {
	t.Helper()
	codec := token.NewCodec("test-secret")
	tracker := presence.New(time.Minute)
	return &fixture{
		codec:    codec,
		presence: tracker,
		security: NewSecurity(codec, tracker, zap.NewNop(), opts...),
	}
}

func (f *fixture) tokenFor(t *testing.T, id token.Identity) string {
	t.Helper()
	tok, err := f.codec.Issue(id, time.Hour)
	require.NoError(t, err)
	return tok
}

var (
	ownerID   = token.Identity{UserID: "owner-1", Username: "boss", IsOwner: true}
	boosterID = token.Identity{UserID: "booster-1", Username: "carry", IsBooster: true}
	clientID  = token.Identity{UserID: "client-1", Username: "buyer"}
)

func okHandler(t *testing.T, wantUser string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if wantUser != "" {
			assert.True(t, ok)
			assert.Equal(t, wantUser, id.UserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAccess(t *testing.T) {
	assert.True(t, Public().IsPublic())
	assert.False(t, AnyAuthenticated().IsPublic())

	role, ok := RequiresRole(models.RoleOwner).Role()
	assert.True(t, ok)
	assert.Equal(t, models.RoleOwner, role)

	_, ok = AnyAuthenticated().Role()
	assert.False(t, ok)

	assert.Equal(t, "public", Public().String())
	assert.Equal(t, "authenticated", AnyAuthenticated().String())
	assert.Equal(t, "role:booster", RequiresRole(models.RoleBooster).String())
}

func TestGuard_API(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name        string
		access      Access
		auth        string
		wantStatus  int
		wantMessage string
	}{
		{name: "public needs nothing", access: Public(), wantStatus: http.StatusOK},
		{name: "missing token", access: AnyAuthenticated(), wantStatus: http.StatusUnauthorized, wantMessage: "Token is missing"},
		{name: "missing token on role guard", access: RequiresRole(models.RoleOwner), wantStatus: http.StatusUnauthorized, wantMessage: "Authentication required"},
		{name: "garbage token", access: AnyAuthenticated(), auth: "Bearer nope", wantStatus: http.StatusUnauthorized, wantMessage: "Invalid or expired token"},
		{name: "any role passes authenticated", access: AnyAuthenticated(), auth: "client", wantStatus: http.StatusOK},
		{name: "owner on owner route", access: RequiresRole(models.RoleOwner), auth: "owner", wantStatus: http.StatusOK},
		{name: "client on owner route", access: RequiresRole(models.RoleOwner), auth: "client", wantStatus: http.StatusForbidden, wantMessage: "Owner privileges required"},
		{name: "owner on client route", access: RequiresRole(models.RoleClient), auth: "owner", wantStatus: http.StatusForbidden, wantMessage: "Client privileges required"},
		{name: "booster on booster route", access: RequiresRole(models.RoleBooster), auth: "booster", wantStatus: http.StatusOK},
	}

	ids := map[string]token.Identity{"owner": ownerID, "booster": boosterID, "client": clientID}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/owner/users", nil)
			switch {
			case tt.auth == "":
			case ids[tt.auth].UserID != "":
				req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, ids[tt.auth]))
			default:
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()

			f.security.Guard(tt.access)(okHandler(t, "")).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, decodeError(t, rec).Message)
			}
		})
	}
}

func TestGuard_BrowserRedirects(t *testing.T) {
	f := newFixture(t)

	t.Run("unauthenticated goes to login with next", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/owner/dashboard?tab=1", nil)
		rec := httptest.NewRecorder()

		f.security.Guard(RequiresRole(models.RoleOwner))(okHandler(t, "")).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login?next=%2Fowner%2Fdashboard%3Ftab%3D1", rec.Header().Get("Location"))
	})

	t.Run("forbidden goes to own landing page", func(t *testing.T) {
		cases := map[string]struct {
			id   token.Identity
			want string
		}{
			"client":  {id: clientID, want: "/dashboard"},
			"booster": {id: boosterID, want: "/booster/dashboard"},
		}
		for name, c := range cases {
			t.Run(name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/owner/dashboard", nil)
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: f.tokenFor(t, c.id)})
				rec := httptest.NewRecorder()

				f.security.Guard(RequiresRole(models.RoleOwner))(okHandler(t, "")).ServeHTTP(rec, req)

				assert.Equal(t, http.StatusFound, rec.Code)
				assert.Equal(t, c.want, rec.Header().Get("Location"))
			})
		}
	})

	t.Run("owner sent away from client page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: f.tokenFor(t, ownerID)})
		rec := httptest.NewRecorder()

		f.security.Guard(RequiresRole(models.RoleClient))(okHandler(t, "")).ServeHTTP(rec, req)

		assert.Equal(t, "/owner/dashboard", rec.Header().Get("Location"))
	})

	t.Run("json content type counts as api", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/owner/dashboard", nil)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()

		f.security.Guard(RequiresRole(models.RoleOwner))(okHandler(t, "")).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestGuard_MarksPresenceAndAttachesIdentity(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, boosterID))
	rec := httptest.NewRecorder()

	f.security.Guard(AnyAuthenticated())(okHandler(t, "booster-1")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.presence.IsOnline("booster-1"))
}

func TestGuard_ForbiddenStillMarksPresence(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/owner/users", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, clientID))
	rec := httptest.NewRecorder()

	f.security.Guard(RequiresRole(models.RoleOwner))(okHandler(t, "")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, f.presence.IsOnline("client-1"))
}

func TestGuard_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	oldCodec := token.NewCodec("test-secret", token.WithClock(func() time.Time { return past }))
	tok, err := oldCodec.Issue(clientID, time.Hour)
	require.NoError(t, err)

	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	f.security.Guard(AnyAuthenticated())(okHandler(t, "")).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", decodeError(t, rec).Message)
	assert.False(t, f.presence.IsOnline("client-1"))
}

func TestGuard_SlidingRefresh(t *testing.T) {
	refresher := &recordingRefresher{}
	f := newFixture(t, WithRefresher(refresher))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, clientID))
	rec := httptest.NewRecorder()

	f.security.Guard(AnyAuthenticated())(okHandler(t, "client-1")).ServeHTTP(rec, req)

	require.Len(t, refresher.refreshed, 1)
	assert.Equal(t, "client-1", refresher.refreshed[0].UserID)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "refreshed", rec.Result().Cookies()[0].Value)

	t.Run("refresh failure does not block", func(t *testing.T) {
		refresher := &recordingRefresher{err: errors.New("no secret")}
		f := newFixture(t, WithRefresher(refresher))
		req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, clientID))
		rec := httptest.NewRecorder()

		f.security.Guard(AnyAuthenticated())(okHandler(t, "client-1")).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejected requests are not refreshed", func(t *testing.T) {
		refresher := &recordingRefresher{}
		f := newFixture(t, WithRefresher(refresher))
		req := httptest.NewRequest(http.MethodGet, "/api/owner/users", nil)
		req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, clientID))

		f.security.Guard(RequiresRole(models.RoleOwner))(okHandler(t, "")).ServeHTTP(httptest.NewRecorder(), req)
		assert.Empty(t, refresher.refreshed)
	})
}

func TestSoft(t *testing.T) {
	f := newFixture(t)

	t.Run("valid token attaches identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/security/check-role", nil)
		req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, ownerID))
		rec := httptest.NewRecorder()

		f.security.Soft(okHandler(t, "owner-1")).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	for name, auth := range map[string]string{"no token": "", "bad token": "Bearer junk"} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/security/check-role", nil)
			if auth != "" {
				req.Header.Set("Authorization", auth)
			}
			rec := httptest.NewRecorder()
			called := false

			f.security.Soft(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				_, ok := IdentityFromContext(r.Context())
				assert.False(t, ok)
			})).ServeHTTP(rec, req)

			assert.True(t, called)
		})
	}
}

func TestForRoute(t *testing.T) {
	f := newFixture(t)
	guarded := f.security.ForRoute(policy.DefaultTable())(okHandler(t, ""))

	tests := []struct {
		path string
		id   *token.Identity
		want int
	}{
		{path: "/login", want: http.StatusOK},
		{path: "/unknown/path", want: http.StatusOK},
		{path: "/api/owner/users", want: http.StatusUnauthorized},
		{path: "/api/owner/users", id: &clientID, want: http.StatusForbidden},
		{path: "/api/owner/anything/deeper", id: &boosterID, want: http.StatusForbidden},
		{path: "/api/owner/users", id: &ownerID, want: http.StatusOK},
		{path: "/api/client/profile", id: &clientID, want: http.StatusOK},
		{path: "/owner/dashboard", want: http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.id != nil {
				req.Header.Set("Authorization", "Bearer "+f.tokenFor(t, *tt.id))
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthenticate_UsesVerifier(t *testing.T) {
	verifier := new(MockTokenVerifier)
	s := NewSecurity(verifier, presence.New(0), zap.NewNop(), WithCookieName("sid"))

	verifier.On("Verify", "cookie-token").Return(&token.Claims{UserID: "u1"}, nil)
	verifier.On("Verify", "bad").Return(nil, token.ErrMalformed)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "cookie-token"})
	claims, rejection := s.Authenticate(req)
	assert.Equal(t, RejectNone, rejection)
	assert.Equal(t, "u1", claims.UserID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "bad"})
	_, rejection = s.Authenticate(req)
	assert.Equal(t, RejectInvalidToken, rejection)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
	_, rejection = s.Authenticate(req)
	assert.Equal(t, RejectNoToken, rejection)

	verifier.AssertExpectations(t)
}

func TestIsAPIRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	assert.True(t, IsAPIRequest(req))

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	assert.False(t, IsAPIRequest(req))

	req.Header.Set("Content-Type", "application/json")
	assert.True(t, IsAPIRequest(req))

	req.Header.Set("Content-Type", "text/html")
	assert.False(t, IsAPIRequest(req))
}
