package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/eloboost/config"
	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/repositories"
	"github.com/upb/eloboost/token"
	"go.uber.org/zap/zaptest"
)

type stubUserRepository struct{}

func (stubUserRepository) UpsertLogin(context.Context, models.LoginRecord) (*models.User, bool, error) {
	return nil, false, errors.New("not implemented")
}

func (stubUserRepository) GetByID(context.Context, string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

func (stubUserRepository) List(context.Context, int, int) ([]*models.User, error) {
	return nil, nil
}

func (stubUserRepository) Ping(context.Context) error { return nil }

type stubStore struct {
	closed   int
	closeErr error
}

func (s *stubStore) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{Users: stubUserRepository{}}
}

func (s *stubStore) InitSchema(context.Context) error { return nil }

func (s *stubStore) Close() error {
	s.closed++
	return s.closeErr
}

func TestNewDependenciesWithRepositories(t *testing.T) {
	t.Run("wires enabled providers only", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.OAuth.Discord = config.OAuthProviderConfig{
			ClientID:     "discord-client",
			ClientSecret: "discord-secret",
			RedirectURI:  "http://localhost:5000/api/auth/discord/callback",
		}

		deps, err := NewDependenciesWithRepositories(cfg, zaptest.NewLogger(t), (&stubStore{}).NewRepositories())
		require.NoError(t, err)

		assert.Equal(t, []string{"discord"}, deps.Providers.Names())
		assert.NotNil(t, deps.UserService)
		assert.NotNil(t, deps.Codec)
		assert.NotNil(t, deps.Sessions)
		assert.NotNil(t, deps.Presence)
		assert.NotNil(t, deps.Security)
		assert.NotNil(t, deps.Permissions)
		assert.NotNil(t, deps.AuthHandler())
		assert.False(t, deps.GeoIP.Enabled())
		assert.Equal(t, "auth_token", deps.Sessions.CookieName())
	})

	t.Run("no providers", func(t *testing.T) {
		deps, err := NewDependenciesWithRepositories(testConfig(t), zaptest.NewLogger(t), (&stubStore{}).NewRepositories())
		require.NoError(t, err)
		assert.Empty(t, deps.Providers.Names())
	})

	t.Run("issued tokens verify", func(t *testing.T) {
		deps, err := NewDependenciesWithRepositories(testConfig(t), zaptest.NewLogger(t), (&stubStore{}).NewRepositories())
		require.NoError(t, err)

		tok, err := deps.Codec.Issue(token.Identity{UserID: "u-1"}, time.Hour)
		require.NoError(t, err)
		claims, err := deps.Codec.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "u-1", claims.Subject)
	})

	t.Run("missing repository", func(t *testing.T) {
		deps, err := NewDependenciesWithRepositories(testConfig(t), zaptest.NewLogger(t), &repositories.Repositories{})
		assert.Error(t, err)
		assert.Nil(t, deps)
	})
}

func TestNewDependencies(t *testing.T) {
	t.Run("store connection failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Mongo.URI = "not-a-mongodb-uri"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize store")
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Driver = "cassandra"

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "unknown store driver")
	})
}

func TestDependenciesClose(t *testing.T) {
	t.Run("closes store and clears presence once", func(t *testing.T) {
		ctx := context.Background()
		store := &stubStore{}

		deps, err := NewDependenciesWithRepositories(testConfig(t), zaptest.NewLogger(t), store.NewRepositories())
		require.NoError(t, err)
		deps.Store = store
		deps.Presence.MarkActive("u-1")

		require.NoError(t, deps.Close(ctx))
		assert.Equal(t, 1, store.closed)
		assert.Equal(t, 0, deps.Presence.Len())

		// Second close is a no-op for the store
		require.NoError(t, deps.Close(ctx))
		assert.Equal(t, 1, store.closed)
	})

	t.Run("reports store close errors", func(t *testing.T) {
		store := &stubStore{closeErr: errors.New("disconnect timeout")}

		deps, err := NewDependenciesWithRepositories(testConfig(t), zaptest.NewLogger(t), store.NewRepositories())
		require.NoError(t, err)
		deps.Store = store

		err = deps.Close(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disconnect timeout")
	})
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: config.StoreConfig{Driver: config.StoreMongo},
		Mongo: config.MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "elo_boost_pro_test",
			Collection:     "users",
			ConnectTimeout: time.Second,
		},
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret",
			TokenTTL:          24 * time.Hour,
			LoginCookieMaxAge: 30 * 24 * time.Hour,
			CookieMaxAge:      24 * time.Hour,
			CookieName:        "auth_token",
			CookieHTTPOnly:    true,
			CookiePath:        "/",
			CookieSameSite:    "Lax",
		},
		OAuth: config.OAuthConfig{
			PublicURL:       "http://localhost:5000",
			DefaultRedirect: "/",
			HTTPTimeout:     5 * time.Second,
		},
		Presence: config.PresenceConfig{TTL: 5 * time.Minute},
		Observability: config.ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}
