package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/eloboost/config"
	"github.com/upb/eloboost/handlers"
	"github.com/upb/eloboost/middleware"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/services"
	"github.com/upb/eloboost/services/geoip"
	"github.com/upb/eloboost/services/providers"
	"github.com/upb/eloboost/session"
	"github.com/upb/eloboost/token"
	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

// UserService records logins and loads stored users
type UserService interface {
	Login(ctx context.Context, provider models.AuthProvider, profile *providers.Profile, clientIP string) (*models.User, bool, error)
	Get(ctx context.Context, id string) (*models.User, error)
}

// Authenticator decodes the session token carried by a request
type Authenticator interface {
	Authenticate(r *http.Request) (*token.Claims, middleware.Rejection)
}

// Presence tracks which users are online
type Presence interface {
	MarkActive(userID string)
	MarkOffline(userID string)
	IsOnline(userID string) bool
}

// Handler handles the OAuth login round trip and the session endpoints
type Handler struct {
	providers       *providers.Registry
	users           UserService
	sessions        *session.Manager
	authn           Authenticator
	presence        Presence
	defaultRedirect string
	now             func() time.Time
	logger          *zap.Logger
}

// NewHandler creates a new auth handler
func NewHandler(
	cfg *config.Config,
	registry *providers.Registry,
	users UserService,
	sessions *session.Manager,
	authn Authenticator,
	presence Presence,
	logger *zap.Logger,
) *Handler {
	redirect := cfg.OAuth.DefaultRedirect
	if redirect == "" {
		redirect = "/"
	}
	return &Handler{
		providers:       registry,
		users:           users,
		sessions:        sessions,
		authn:           authn,
		presence:        presence,
		defaultRedirect: redirect,
		now:             time.Now,
		logger:          logger,
	}
}

type userResponse struct {
	Success bool               `json:"success"`
	User    models.UserSummary `json:"user"`
}

type meResponse struct {
	*models.User
	Online bool `json:"online"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type checkTokenResponse struct {
	IsAuthenticated bool                `json:"isAuthenticated"`
	Valid           bool                `json:"valid"`
	User            *models.UserSummary `json:"user,omitempty"`
	Message         string              `json:"message,omitempty"`
}

type statusResponse struct {
	UserID    string `json:"user_id"`
	Online    bool   `json:"online"`
	Timestamp string `json:"timestamp"`
}

// HandleLogin handles GET /api/auth/{provider}/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	state, err := session.NewState()
	if err != nil {
		h.logger.Error("failed to generate state", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to initiate login")
		return
	}

	h.sessions.SetState(w, state)
	if next := r.URL.Query().Get("next"); next != "" {
		h.sessions.SetRedirect(w, next)
	}

	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback handles GET /api/auth/{provider}/callback. It trades the
// code for a profile, records the login and sets the session cookie.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	p, ok := h.provider(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	query := r.URL.Query()

	code := query.Get("code")
	if code == "" {
		h.logger.Info("callback without code",
			zap.String("request_id", requestID),
			zap.String("provider", p.Name()),
			zap.String("provider_error", query.Get("error")))
		_ = utils.WriteBadRequest(w, "Missing authorization code", nil)
		return
	}
	if !h.sessions.ConsumeState(w, r, query.Get("state")) {
		_ = utils.WriteBadRequest(w, "Invalid or expired state", nil)
		return
	}

	accessToken, err := p.ExchangeCode(ctx, code)
	if err != nil {
		handlers.HandleServiceError(w, services.WrapProvider("Failed to exchange authorization code", err), h.logger)
		return
	}

	profile, err := p.FetchProfile(ctx, accessToken)
	if err != nil {
		handlers.HandleServiceError(w, services.WrapProvider("Failed to fetch user profile", err), h.logger)
		return
	}

	user, created, err := h.users.Login(ctx, models.AuthProvider(p.Name()), profile, geoip.ClientIP(r))
	if err != nil {
		handlers.HandleServiceError(w, err, h.logger)
		return
	}

	if _, err := h.sessions.Start(w, token.IdentityFromUser(user)); err != nil {
		handlers.HandleServiceError(w, services.WrapInternal("failed to start session", err), h.logger)
		return
	}
	h.presence.MarkActive(user.ID)

	h.logger.Info("user logged in",
		zap.String("request_id", requestID),
		zap.String("provider", p.Name()),
		zap.String("user_id", user.ID),
		zap.Bool("created", created))

	http.Redirect(w, r, h.sessions.PopRedirect(w, r, h.defaultRedirect), http.StatusFound)
}

// HandleUser handles GET /api/auth/user
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		handlers.HandleServiceError(w, services.ErrNoToken, h.logger)
		return
	}
	h.write(w, http.StatusOK, userResponse{Success: true, User: id.Summary()})
}

// HandleMe handles GET /api/auth/me with the full stored record
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		handlers.HandleServiceError(w, services.ErrNoToken, h.logger)
		return
	}

	user, err := h.users.Get(r.Context(), id.UserID)
	if err != nil {
		handlers.HandleServiceError(w, err, h.logger)
		return
	}
	h.write(w, http.StatusOK, meResponse{User: user, Online: true})
}

// HandleLogout handles POST /api/auth/logout
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, rejection := h.authn.Authenticate(r); rejection == middleware.RejectNone {
		h.presence.MarkOffline(claims.Subject)
		h.logger.Info("user logged out",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.String("user_id", claims.Subject))
	}

	h.sessions.Clear(w)
	h.write(w, http.StatusOK, logoutResponse{Success: true, Message: "Logged out successfully"})
}

// HandleCheckToken handles GET and OPTIONS /api/auth/check-token. A valid
// token is re-issued from the stored record so role changes take effect.
func (h *Handler) HandleCheckToken(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writePreflight(w, r)
		return
	}

	claims, rejection := h.authn.Authenticate(r)
	if rejection != middleware.RejectNone {
		msg := "Invalid or expired token"
		if rejection == middleware.RejectNoToken {
			msg = "No authentication token found"
		}
		h.write(w, http.StatusUnauthorized, checkTokenResponse{Message: msg})
		return
	}

	ctx := r.Context()
	h.presence.MarkActive(claims.Subject)

	id := claims.Identity()
	summary := id.Summary()
	user, err := h.users.Get(ctx, claims.Subject)
	switch {
	case err == nil:
		id = token.IdentityFromUser(user)
		summary = user.Summary()
	case errors.Is(err, services.ErrUserNotFound):
		h.logger.Debug("token subject has no stored record", zap.String("user_id", claims.Subject))
	default:
		h.logger.Warn("failed to load user for token check",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("user_id", claims.Subject),
			zap.Error(err))
	}

	if _, err := h.sessions.Refresh(w, id); err != nil {
		h.logger.Warn("session refresh failed", zap.String("user_id", claims.Subject), zap.Error(err))
	}

	h.write(w, http.StatusOK, checkTokenResponse{
		IsAuthenticated: true,
		Valid:           true,
		User:            &summary,
	})
}

// HandleStatus handles GET /api/auth/status/{user_id}
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	h.write(w, http.StatusOK, statusResponse{
		UserID:    userID,
		Online:    h.presence.IsOnline(userID),
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) provider(w http.ResponseWriter, r *http.Request) (providers.Provider, bool) {
	name := chi.URLParam(r, "provider")
	p, err := h.providers.Get(name)
	if err != nil {
		_ = utils.WriteNotFound(w, "Unknown identity provider")
		return nil, false
	}
	return p, true
}

func (h *Handler) write(w http.ResponseWriter, status int, body interface{}) {
	if err := utils.WriteJSON(w, status, body); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// writePreflight answers a CORS preflight for clients that call
// check-token from another origin with credentials
func writePreflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", "86400")
	h.Add("Vary", "Origin")
	w.WriteHeader(http.StatusOK)
}
