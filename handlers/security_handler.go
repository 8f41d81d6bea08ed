package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/eloboost/internal/policy"
	"github.com/upb/eloboost/middleware"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

// SecurityHandler exposes the caller's role and the permission table to the
// frontend so it can hide links the caller may not follow
type SecurityHandler struct {
	table  *policy.Table
	logger *zap.Logger
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(table *policy.Table, logger *zap.Logger) *SecurityHandler {
	return &SecurityHandler{
		table:  table,
		logger: logger,
	}
}

// RoleResponse describes the caller. ID and Username are null for anonymous callers.
type RoleResponse struct {
	ID        *string     `json:"id"`
	Username  *string     `json:"username"`
	IsOwner   bool        `json:"is_owner"`
	IsBooster bool        `json:"is_booster"`
	Role      models.Role `json:"role"`
}

// AccessResponse is the outcome of checking the caller against a route
type AccessResponse struct {
	AccessGranted bool         `json:"access_granted"`
	UserRole      models.Role  `json:"user_role"`
	RequiredRole  *models.Role `json:"required_role"`
	RoutePath     string       `json:"route_path"`
}

// HandleCheckRole handles GET /api/security/check-role
func (h *SecurityHandler) HandleCheckRole(w http.ResponseWriter, r *http.Request) {
	resp := RoleResponse{Role: models.RoleAnonymous}
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		resp = RoleResponse{
			ID:        &id.UserID,
			Username:  &id.Username,
			IsOwner:   id.IsOwner,
			IsBooster: id.IsBooster,
			Role:      id.Role(),
		}
	}

	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write role response", zap.Error(err))
	}
}

// HandleAccessCheck handles GET /api/security/access-check/*
func (h *SecurityHandler) HandleAccessCheck(w http.ResponseWriter, r *http.Request) {
	role := models.RoleAnonymous
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		role = id.Role()
	}

	decision := h.table.Check(role, chi.URLParam(r, "*"))
	resp := AccessResponse{
		AccessGranted: decision.AccessGranted,
		UserRole:      decision.UserRole,
		RoutePath:     decision.RoutePath,
	}
	if decision.RequiredRole != "" {
		required := decision.RequiredRole
		resp.RequiredRole = &required
	}

	if err := utils.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("failed to write access response", zap.Error(err))
	}
}
