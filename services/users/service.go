package users

import (
	"context"
	"errors"
	"time"

	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/repositories"
	"github.com/upb/eloboost/services"
	"github.com/upb/eloboost/services/providers"
	"github.com/upb/eloboost/utils"
	"go.uber.org/zap"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// GeoLocator resolves client addresses to locations
type GeoLocator interface {
	ResolvePublicIP(ctx context.Context, ip string) string
	Lookup(ctx context.Context, ip string) *models.IPInfo
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source stamped on logins
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service turns provider logins into stored users
type Service struct {
	repo   repositories.UserRepository
	geo    GeoLocator
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a user service. geo may be nil to skip lookups.
func NewService(repo repositories.UserRepository, geo GeoLocator, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		geo:    geo,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login records a successful provider login for profile, creating the user
// on first sight of its provider id. Geo lookup problems never fail a login.
func (s *Service) Login(ctx context.Context, provider models.AuthProvider, profile *providers.Profile, clientIP string) (*models.User, bool, error) {
	if profile == nil {
		return nil, false, services.ErrInvalidProfile
	}
	if err := utils.ValidateStruct(profile); err != nil {
		return nil, false, services.NewDomainError(services.ErrorTypeValidation, "invalid provider profile", err).
			WithDetail("fields", utils.GetValidationFields(err))
	}

	ip := clientIP
	var info *models.IPInfo
	if s.geo != nil {
		ip = s.geo.ResolvePublicIP(ctx, clientIP)
		info = s.geo.Lookup(ctx, ip)
	}

	rec := models.LoginRecord{
		Provider:    provider,
		ProviderID:  profile.ProviderID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Avatar:      profile.Avatar,
		IPAddress:   ip,
		IPInfo:      info,
		At:          s.now().UTC(),
	}

	user, created, err := s.repo.UpsertLogin(ctx, rec)
	if err != nil {
		s.logger.Error("failed to store login",
			zap.String("provider", string(provider)),
			zap.String("provider_id", profile.ProviderID),
			zap.Error(err))
		return nil, false, services.WrapInternal("failed to store user", err)
	}

	if created {
		s.logger.Info("new user registered",
			zap.String("user_id", user.ID),
			zap.String("provider", string(provider)))
	}
	return user, created, nil
}

// Get loads a user by id
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.NewDomainError(services.ErrorTypeNotFound, "user not found", err)
		}
		return nil, services.WrapInternal("failed to load user", err)
	}
	return user, nil
}

// List returns a page of users, most recent login first
func (s *Service) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	limit, offset = PageBounds(limit, offset)

	list, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list users", err)
	}
	return list, nil
}

// PageBounds returns the limit and offset List applies for a request
func PageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Ping reports whether the user store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
