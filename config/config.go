package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/eloboost/utils"
)

// Supported user store drivers
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Mongo         MongoConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	OAuth         OAuthConfig
	GeoIP         GeoIPConfig
	Presence      PresenceConfig
	CORS          CORSConfig
	Frontend      FrontendConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// StoreConfig selects the user store backend
type StoreConfig struct {
	Driver string `validate:"oneof=mongo postgres"`
}

// MongoConfig holds the document database connection settings
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds session token and cookie settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration

	// LoginCookieMaxAge applies to the cookie set by an OAuth callback,
	// CookieMaxAge to cookies rewritten on refresh.
	LoginCookieMaxAge time.Duration
	CookieMaxAge      time.Duration

	CookieName     string
	CookieHTTPOnly bool
	CookiePath     string
	CookieSameSite string `validate:"oneof=Lax Strict None"`
	CookieSecure   bool
	CookieDomain   string

	// SecretGenerated is set when no JWT_SECRET was configured and a random
	// one was created for this process
	SecretGenerated bool
}

// OAuthProviderConfig holds one identity provider's client settings
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Endpoint overrides, empty in production
	AuthURL    string
	TokenURL   string
	APIBaseURL string
}

// Enabled reports whether the provider has client credentials
func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuthConfig holds identity provider configuration
type OAuthConfig struct {
	Discord OAuthProviderConfig
	Google  OAuthProviderConfig

	// PublicURL is used to derive callback URLs that are not set explicitly
	PublicURL string

	// DefaultRedirect is where a browser lands after login when no safe
	// redirect target was stored
	DefaultRedirect string

	HTTPTimeout time.Duration
}

// GeoIPConfig holds the IP geolocation settings
type GeoIPConfig struct {
	Tokens  []string
	Timeout time.Duration
	BaseURL string
}

// PresenceConfig holds the online tracker settings
type PresenceConfig struct {
	TTL time.Duration
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// FrontendConfig points at the built app shell
type FrontendConfig struct {
	IndexFile string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// config.env is the historical file name; .env wins when both exist
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	port := getEnvAsInt("SERVER_PORT", 5000)
	publicURL := strings.TrimRight(getEnv("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            port,
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "elo_boost_pro"),
			Collection:     getEnv("MONGODB_USERS_COLLECTION", "users"),
			ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:    uint64(getEnvAsInt("MONGODB_MAX_POOL_SIZE", 50)),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			TokenTTL:          getEnvAsSeconds("JWT_EXPIRATION", 24*time.Hour),
			LoginCookieMaxAge: getEnvAsSeconds("COOKIE_LOGIN_MAX_AGE", 30*24*time.Hour),
			CookieMaxAge:      getEnvAsSeconds("COOKIE_MAX_AGE", 24*time.Hour),
			CookieName:        getEnv("COOKIE_NAME", "auth_token"),
			CookieHTTPOnly:    getEnvAsBool("COOKIE_HTTPONLY", true),
			CookiePath:        getEnv("COOKIE_PATH", "/"),
			CookieSameSite:    normalizeSameSite(getEnv("COOKIE_SAMESITE", "Lax")),
			CookieSecure:      getEnvAsBool("COOKIE_SECURE", false),
			CookieDomain:      getEnv("COOKIE_DOMAIN", ""),
		},
		OAuth: OAuthConfig{
			Discord:         loadProviderConfig("DISCORD", publicURL+"/api/auth/discord/callback"),
			Google:          loadProviderConfig("GOOGLE", publicURL+"/api/auth/google/callback"),
			PublicURL:       publicURL,
			DefaultRedirect: getEnv("LOGIN_REDIRECT_DEFAULT", "/"),
			HTTPTimeout:     getEnvAsDuration("OAUTH_HTTP_TIMEOUT", 10*time.Second),
		},
		GeoIP: GeoIPConfig{
			Tokens:  getEnvList("IPINFO_API_TOKEN_1", "IPINFO_API_TOKEN_2", "IPINFO_API_TOKEN_3"),
			Timeout: getEnvAsDuration("GEOIP_TIMEOUT", 5*time.Second),
			BaseURL: getEnv("IPINFO_BASE_URL", ""),
		},
		Presence: PresenceConfig{
			TTL: getEnvAsDuration("PRESENCE_TTL", 5*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5000,http://localhost:5173")),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", true),
		},
		Frontend: FrontendConfig{
			IndexFile: getEnv("FRONTEND_INDEX", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate development jwt secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		cfg.Auth.SecretGenerated = true
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c.Store); err != nil {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StorePostgres, c.Store.Driver)
	}

	switch c.Store.Driver {
	case StoreMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo store")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo database name is required")
		}
	case StorePostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRATION must be positive")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("cookie name is required")
	}
	if err := utils.ValidateStruct(c.Auth); err != nil {
		return fmt.Errorf("COOKIE_SAMESITE must be Lax, Strict or None, got %q", c.Auth.CookieSameSite)
	}
	if c.Auth.CookieSameSite == "None" && !c.Auth.CookieSecure {
		return fmt.Errorf("COOKIE_SAMESITE=None requires COOKIE_SECURE=true")
	}

	// At least one identity provider must be usable in production
	if c.IsProduction() && !c.OAuth.Discord.Enabled() && !c.OAuth.Google.Enabled() {
		return fmt.Errorf("at least one OAuth provider must be configured in production")
	}

	if !strings.HasPrefix(c.OAuth.DefaultRedirect, "/") {
		return fmt.Errorf("LOGIN_REDIRECT_DEFAULT must be a relative path")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// SameSite converts the configured SameSite name to its http constant
func (a *AuthConfig) SameSite() http.SameSite {
	switch a.CookieSameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// LogString returns the Mongo target without credentials
func (c *MongoConfig) LogString() string {
	u, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Sprintf("uri=<unparseable> database=%s", c.Database)
	}
	return fmt.Sprintf("host=%s database=%s", u.Host, c.Database)
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "eloboost"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "elo_boost_pro"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadProviderConfig reads <PREFIX>_CLIENT_ID and friends
func loadProviderConfig(prefix, defaultRedirect string) OAuthProviderConfig {
	return OAuthProviderConfig{
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		RedirectURI:  getEnv(prefix+"_REDIRECT_URI", defaultRedirect),
		AuthURL:      getEnv(prefix+"_AUTH_URL", ""),
		TokenURL:     getEnv(prefix+"_TOKEN_URL", ""),
		APIBaseURL:   getEnv(prefix+"_API_BASE_URL", ""),
	}
}

func normalizeSameSite(v string) string {
	switch strings.ToLower(v) {
	case "strict":
		return "Strict"
	case "none":
		return "None"
	case "lax":
		return "Lax"
	default:
		return v
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSeconds accepts either a plain number of seconds or a Go duration
func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvList collects the non-empty values of keys
func getEnvList(keys ...string) []string {
	var values []string
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
