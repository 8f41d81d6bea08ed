package providers

import (
	"context"
	"fmt"
	"time"
)

// Provider represents an OAuth2 identity provider
type Provider interface {
	// Name returns the provider name used in URLs (e.g., "discord", "google")
	Name() string

	// AuthCodeURL returns the consent screen URL carrying the given state
	AuthCodeURL(state string) string

	// ExchangeCode trades an authorization code for a provider access token
	ExchangeCode(ctx context.Context, code string) (string, error)

	// FetchProfile loads the user's profile with a provider access token
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}

// Profile is the provider-neutral identity returned after a login
type Profile struct {
	ProviderID  string `json:"provider_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Avatar      string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// Config holds the client credentials and endpoint overrides for a provider
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides. Empty values use the provider's public endpoints.
	AuthURL    string
	TokenURL   string
	APIBaseURL string

	// Timeout bounds every HTTP call made to the provider
	Timeout time.Duration
}

// DefaultTimeout applies when Config.Timeout is zero
const DefaultTimeout = 10 * time.Second

// Stage names the step of the login at which a provider call failed
type Stage string

const (
	StageExchange Stage = "exchange"
	StageProfile  Stage = "profile"
)

// Error represents a failed call to a provider
type Error struct {
	// Provider that generated the error
	Provider string

	// Stage of the login flow
	Stage Stage

	// StatusCode is the HTTP status code, zero for transport failures
	StatusCode int

	// Message is a short description
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Stage, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new provider error
func NewError(provider string, stage Stage, statusCode int, message string, cause error) *Error {
	return &Error{
		Provider:   provider,
		Stage:      stage,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
