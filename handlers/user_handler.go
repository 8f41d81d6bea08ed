package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/upb/eloboost/middleware"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/services"
	"github.com/upb/eloboost/services/users"
	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

// UserLister pages through stored users
type UserLister interface {
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

// OnlineLister reports the ids of users seen recently
type OnlineLister interface {
	Online() []string
}

// UserHandler serves the user views of the owner, booster and client areas
type UserHandler struct {
	users    UserLister
	presence OnlineLister
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserLister, presence OnlineLister, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		presence: presence,
		logger:   logger,
	}
}

// UserListResponse is a page of users
type UserListResponse struct {
	Users  []*models.User `json:"users"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// OnlineResponse lists the users currently online
type OnlineResponse struct {
	UserIDs []string `json:"user_ids"`
	Count   int      `json:"count"`
}

// ProfileResponse is the caller identity with its derived role
type ProfileResponse struct {
	models.UserSummary
	Role models.Role `json:"role"`
}

// HandleListUsers handles GET /api/owner/users
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, "limit must be an integer", nil)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, "offset must be an integer", nil)
		return
	}

	limit, offset = users.PageBounds(limit, offset)

	list, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if list == nil {
		list = []*models.User{}
	}

	if err := utils.WriteOK(w, UserListResponse{Users: list, Count: len(list), Limit: limit, Offset: offset}); err != nil {
		h.logger.Error("failed to write user list", zap.Error(err))
	}
}

// HandleOnline handles GET /api/owner/online
func (h *UserHandler) HandleOnline(w http.ResponseWriter, r *http.Request) {
	ids := h.presence.Online()
	if err := utils.WriteOK(w, OnlineResponse{UserIDs: ids, Count: len(ids)}); err != nil {
		h.logger.Error("failed to write online list", zap.Error(err))
	}
}

// HandleProfile handles GET /api/booster/profile and GET /api/client/profile
func (h *UserHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		HandleServiceError(w, services.ErrNoToken, h.logger)
		return
	}

	if err := utils.WriteOK(w, ProfileResponse{UserSummary: id.Summary(), Role: id.Role()}); err != nil {
		h.logger.Error("failed to write profile", zap.Error(err))
	}
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
