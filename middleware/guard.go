package middleware

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/upb/eloboost/internal/policy"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/session"
	"github.com/upb/eloboost/token"
	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

type accessKind int

const (
	accessPublic accessKind = iota
	accessAuthenticated
	accessRole
)

// Access describes what a route demands of its caller
type Access struct {
	kind accessKind
	role models.Role
}

// Public lets every request through
func Public() Access { return Access{kind: accessPublic} }

// AnyAuthenticated requires a valid session of any role
func AnyAuthenticated() Access { return Access{kind: accessAuthenticated} }

// RequiresRole requires a valid session whose derived role equals role
func RequiresRole(role models.Role) Access { return Access{kind: accessRole, role: role} }

// IsPublic reports whether the access admits anonymous callers
func (a Access) IsPublic() bool { return a.kind == accessPublic }

// Role returns the required role for role-restricted access
func (a Access) Role() (models.Role, bool) {
	return a.role, a.kind == accessRole
}

// String names the access for logs
func (a Access) String() string {
	switch a.kind {
	case accessAuthenticated:
		return "authenticated"
	case accessRole:
		return "role:" + string(a.role)
	default:
		return "public"
	}
}

// Rejection is the reason a guard refused a request
type Rejection string

const (
	RejectNone         Rejection = ""
	RejectNoToken      Rejection = "no_token"
	RejectInvalidToken Rejection = "invalid_token"
	RejectForbidden    Rejection = "forbidden"
)

// TokenVerifier decodes session tokens
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// PresenceMarker records user activity
type PresenceMarker interface {
	MarkActive(userID string)
}

// SessionRefresher re-issues the session token of a request that passed a guard
type SessionRefresher interface {
	Refresh(w http.ResponseWriter, id token.Identity) (string, error)
}

// SecurityOption configures Security
type SecurityOption func(*Security)

// WithRefresher enables sliding sessions on hard guards
func WithRefresher(r SessionRefresher) SecurityOption {
	return func(s *Security) { s.refresher = r }
}

// WithCookieName overrides the session cookie name
func WithCookieName(name string) SecurityOption {
	return func(s *Security) { s.cookieName = name }
}

// WithLoginPath overrides the page unauthenticated browsers are sent to
func WithLoginPath(path string) SecurityOption {
	return func(s *Security) { s.loginPath = path }
}

// Security authenticates requests and enforces route access
type Security struct {
	verifier   TokenVerifier
	presence   PresenceMarker
	refresher  SessionRefresher
	cookieName string
	loginPath  string
	logger     *zap.Logger
}

// NewSecurity creates the guard middleware factory
func NewSecurity(verifier TokenVerifier, presence PresenceMarker, logger *zap.Logger, opts ...SecurityOption) *Security {
	s := &Security{
		verifier:   verifier,
		presence:   presence,
		cookieName: "auth_token",
		loginPath:  models.LandingPath(models.RoleAnonymous),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate decodes the request's token. It returns RejectNoToken or
// RejectInvalidToken when no usable session is present.
func (s *Security) Authenticate(r *http.Request) (*token.Claims, Rejection) {
	raw := session.TokenFromRequest(r, s.cookieName)
	if raw == "" {
		return nil, RejectNoToken
	}

	claims, err := s.verifier.Verify(raw)
	if err != nil {
		s.logger.Debug("token rejected",
			zap.String("request_id", GetRequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, RejectInvalidToken
	}
	return claims, RejectNone
}

// Guard enforces access on every request it wraps
func (s *Security) Guard(access Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if access.IsPublic() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.serveGuarded(w, r, next, access)
		})
	}
}

func (s *Security) serveGuarded(w http.ResponseWriter, r *http.Request, next http.Handler, access Access) {
	ctx := r.Context()
	requestID := GetRequestIDFromContext(ctx)

	claims, rejection := s.Authenticate(r)
	if rejection != RejectNone {
		s.reject(w, r, rejection, access, models.RoleAnonymous)
		return
	}

	s.presence.MarkActive(claims.Subject)

	if required, ok := access.Role(); ok && claims.Role() != required {
		s.logger.Warn("insufficient role",
			zap.String("request_id", requestID),
			zap.String("user_id", claims.Subject),
			zap.String("required_role", string(required)),
			zap.String("user_role", string(claims.Role())))
		s.reject(w, r, RejectForbidden, access, claims.Role())
		return
	}

	if s.refresher != nil {
		if _, err := s.refresher.Refresh(w, claims.Identity()); err != nil {
			s.logger.Warn("session refresh failed",
				zap.String("request_id", requestID),
				zap.String("user_id", claims.Subject),
				zap.Error(err))
		}
	}

	next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
}

// Soft attaches the caller identity when a valid token is present and
// never rejects
func (s *Security) Soft(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, rejection := s.Authenticate(r)
		if rejection != RejectNone {
			next.ServeHTTP(w, r)
			return
		}
		s.presence.MarkActive(claims.Subject)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// ForRoute guards each request with the access the table assigns its path.
// Paths the table does not list are public.
func (s *Security) ForRoute(table *policy.Table) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := table.RequiredRole(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			s.serveGuarded(w, r, next, RequiresRole(role))
		})
	}
}

// reject answers API requests with JSON and redirects browser navigations
func (s *Security) reject(w http.ResponseWriter, r *http.Request, reason Rejection, access Access, callerRole models.Role) {
	if IsAPIRequest(r) {
		var err error
		switch reason {
		case RejectForbidden:
			required, _ := access.Role()
			err = utils.WriteForbidden(w, roleTitle(required)+" privileges required")
		case RejectInvalidToken:
			err = utils.WriteUnauthorized(w, "Invalid or expired token")
		default:
			msg := "Authentication required"
			if access.kind == accessAuthenticated {
				msg = "Token is missing"
			}
			err = utils.WriteUnauthorized(w, msg)
		}
		if err != nil {
			s.logger.Error("failed to write rejection", zap.Error(err))
		}
		return
	}

	target := s.loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	if reason == RejectForbidden {
		target = models.LandingPath(callerRole)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// IsAPIRequest reports whether a rejection should be rendered as JSON
func IsAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func roleTitle(role models.Role) string {
	s := string(role)
	if s == "" {
		return "Additional"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
