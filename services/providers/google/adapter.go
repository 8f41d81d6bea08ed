package google

import (
	"context"

	"github.com/upb/eloboost/services/providers"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultAPIBaseURL = "https://www.googleapis.com"

// Scopes requested on the consent screen
var Scopes = []string{"openid", "email", "profile"}

// GoogleUser is the v1 userinfo payload
type GoogleUser struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Picture       string `json:"picture"`
}

// GoogleAdapter implements the Provider interface for Google
type GoogleAdapter struct {
	*providers.OAuthClient
	apiBaseURL string
}

// NewGoogleAdapter creates a new Google adapter. The consent URL asks for
// offline access and always shows the consent prompt.
func NewGoogleAdapter(cfg providers.Config) *GoogleAdapter {
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}

	endpoint := endpoints.Google
	endpoint.AuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

	return &GoogleAdapter{
		OAuthClient: providers.NewOAuthClient("google", endpoint, Scopes, cfg,
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		),
		apiBaseURL: apiBase,
	}
}

// FetchProfile loads the user from the userinfo endpoint
func (a *GoogleAdapter) FetchProfile(ctx context.Context, accessToken string) (*providers.Profile, error) {
	var u GoogleUser
	if err := a.GetJSON(ctx, providers.JoinURL(a.apiBaseURL, "/oauth2/v1/userinfo"), accessToken, &u); err != nil {
		return nil, err
	}

	if u.ID == "" {
		return nil, providers.NewError(a.Name(), providers.StageProfile, 0, "profile has no user id", nil)
	}

	return &providers.Profile{
		ProviderID:  u.ID,
		DisplayName: u.Name,
		Email:       u.Email,
		Avatar:      u.Picture,
	}, nil
}
