package discord

import (
	"context"
	"fmt"

	"github.com/upb/eloboost/services/providers"
	"golang.org/x/oauth2/endpoints"
)

const (
	defaultAPIBaseURL = "https://discord.com/api/v10"
	defaultCDNBaseURL = "https://cdn.discordapp.com"
)

// Scopes requested on the consent screen
var Scopes = []string{"identify", "email"}

// DiscordUser is the subset of /users/@me the backend reads
type DiscordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar"`
}

// DiscordAdapter implements the Provider interface for Discord
type DiscordAdapter struct {
	*providers.OAuthClient
	apiBaseURL string
	cdnBaseURL string
}

// NewDiscordAdapter creates a new Discord adapter
func NewDiscordAdapter(cfg providers.Config) *DiscordAdapter {
	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}

	return &DiscordAdapter{
		OAuthClient: providers.NewOAuthClient("discord", endpoints.Discord, Scopes, cfg),
		apiBaseURL:  apiBase,
		cdnBaseURL:  defaultCDNBaseURL,
	}
}

// FetchProfile loads the current user from /users/@me
func (a *DiscordAdapter) FetchProfile(ctx context.Context, accessToken string) (*providers.Profile, error) {
	var u DiscordUser
	if err := a.GetJSON(ctx, providers.JoinURL(a.apiBaseURL, "/users/@me"), accessToken, &u); err != nil {
		return nil, err
	}

	if u.ID == "" {
		return nil, providers.NewError(a.Name(), providers.StageProfile, 0, "profile has no user id", nil)
	}

	return &providers.Profile{
		ProviderID:  u.ID,
		DisplayName: u.Username,
		Email:       u.Email,
		Avatar:      a.avatarURL(u.ID, u.Avatar),
	}, nil
}

// avatarURL builds the CDN URL for an avatar hash. Users without a custom
// avatar have no hash and get an empty URL.
func (a *DiscordAdapter) avatarURL(userID, hash string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/avatars/%s/%s.webp", a.cdnBaseURL, userID, hash)
}
