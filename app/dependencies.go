package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/eloboost/auth"
	"github.com/upb/eloboost/config"
	"github.com/upb/eloboost/internal/policy"
	"github.com/upb/eloboost/middleware"
	"github.com/upb/eloboost/presence"
	"github.com/upb/eloboost/repositories"
	"github.com/upb/eloboost/repositories/mongo"
	"github.com/upb/eloboost/repositories/postgres"
	"github.com/upb/eloboost/services/geoip"
	"github.com/upb/eloboost/services/providers"
	"github.com/upb/eloboost/services/providers/discord"
	"github.com/upb/eloboost/services/providers/google"
	"github.com/upb/eloboost/services/users"
	"github.com/upb/eloboost/session"
	"github.com/upb/eloboost/token"
	"go.uber.org/zap"
)

// Store is a user store backend
type Store interface {
	NewRepositories() *repositories.Repositories
	InitSchema(ctx context.Context) error
	Close() error
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Store  Store

	// Repositories
	Users repositories.UserRepository

	// Services
	UserService *users.Service
	GeoIP       *geoip.Client
	Providers   *providers.Registry

	// Auth
	Codec       *token.Codec
	Sessions    *session.Manager
	Presence    *presence.Tracker
	Permissions *policy.Table
	Security    *middleware.Security
	authHandler *auth.Handler
}

// AuthHandler returns the auth handler for route wiring
func (d *Dependencies) AuthHandler() *auth.Handler {
	return d.authHandler
}

// NewDependencies connects the configured store and wires up all
// application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := store.InitSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}

	deps, err := NewDependenciesWithRepositories(cfg, logger, store.NewRepositories())
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	deps.Store = store

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.Store.Driver))
	return deps, nil
}

// NewDependenciesWithRepositories wires everything above an already
// opened store. The caller owns the store's lifetime.
func NewDependenciesWithRepositories(cfg *config.Config, logger *zap.Logger, repos *repositories.Repositories) (*Dependencies, error) {
	if repos == nil || repos.Users == nil {
		return nil, errors.New("user repository is required")
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Users:  repos.Users,
	}

	deps.initServices(cfg)

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initAuth(cfg)
	return deps, nil
}

// openStore connects to the backend named by the store driver
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		factory, err := postgres.NewRepositoryFactory(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create repository factory: %w", err)
		}
		return factory, nil

	case config.StoreMongo, "":
		factory, err := mongo.NewRepositoryFactory(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create repository factory: %w", err)
		}
		return factory, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initServices creates the geo lookup client and the user service
func (d *Dependencies) initServices(cfg *config.Config) {
	d.GeoIP = geoip.NewClient(geoip.Config{
		Tokens:        cfg.GeoIP.Tokens,
		Timeout:       cfg.GeoIP.Timeout,
		IPInfoBaseURL: cfg.GeoIP.BaseURL,
	}, d.Logger)

	var geo users.GeoLocator
	if d.GeoIP.Enabled() {
		geo = d.GeoIP
	} else {
		d.Logger.Info("geo lookup disabled, no ipinfo token configured")
	}

	d.UserService = users.NewService(d.Users, geo, d.Logger)
}

// initProviders registers every identity provider that has credentials
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	if p := cfg.OAuth.Discord; p.Enabled() {
		if err := registry.Register(discord.NewDiscordAdapter(providerConfig(p, cfg.OAuth))); err != nil {
			return err
		}
		d.Logger.Info("registered identity provider", zap.String("provider", "discord"))
	}

	if p := cfg.OAuth.Google; p.Enabled() {
		if err := registry.Register(google.NewGoogleAdapter(providerConfig(p, cfg.OAuth))); err != nil {
			return err
		}
		d.Logger.Info("registered identity provider", zap.String("provider", "google"))
	}

	if len(registry.Names()) == 0 {
		d.Logger.Warn("no identity providers configured, logins are disabled")
	}

	d.Providers = registry
	return nil
}

func providerConfig(p config.OAuthProviderConfig, oauth config.OAuthConfig) providers.Config {
	return providers.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURI,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		APIBaseURL:   p.APIBaseURL,
		Timeout:      oauth.HTTPTimeout,
	}
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.SecretGenerated {
		d.Logger.Warn("JWT_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	d.Codec = token.NewCodec(cfg.Auth.JWTSecret)
	d.Presence = presence.New(cfg.Presence.TTL)
	d.Sessions = session.NewManager(session.SettingsFromConfig(cfg.Auth), d.Codec)
	d.Permissions = policy.DefaultTable()
	d.Security = middleware.NewSecurity(d.Codec, d.Presence, d.Logger,
		middleware.WithRefresher(d.Sessions),
		middleware.WithCookieName(d.Sessions.CookieName()))

	d.authHandler = auth.NewHandler(cfg, d.Providers, d.UserService, d.Sessions, d.Security, d.Presence, d.Logger)
	d.Logger.Info("auth handler initialized")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		} else {
			d.Logger.Info("store connection closed")
		}
		d.Store = nil
	}

	if d.Presence != nil {
		d.Presence.Clear()
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
