package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// maxBodyBytes caps how much of a provider response is read
const maxBodyBytes = 1 << 20

// OAuthClient carries the code exchange and authenticated GET plumbing
// shared by the provider adapters
type OAuthClient struct {
	name       string
	oauth      *oauth2.Config
	httpClient *http.Client
	authOpts   []oauth2.AuthCodeOption
}

// NewOAuthClient builds a client for endpoint, applying the URL overrides
// from cfg. authOpts are appended to every consent URL.
func NewOAuthClient(name string, endpoint oauth2.Endpoint, scopes []string, cfg Config, authOpts ...oauth2.AuthCodeOption) *OAuthClient {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// Both providers accept credentials in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OAuthClient{
		name: name,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		httpClient: &http.Client{Timeout: timeout},
		authOpts:   authOpts,
	}
}

// Name returns the provider name
func (c *OAuthClient) Name() string {
	return c.name
}

// AuthCodeURL returns the consent screen URL
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, c.authOpts...)
}

// ExchangeCode trades an authorization code for an access token
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", NewError(c.name, StageExchange, 0, "authorization code is empty", nil)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", NewError(c.name, StageExchange, retrieveErr.Response.StatusCode, "token endpoint rejected the code", err)
		}
		return "", NewError(c.name, StageExchange, 0, "token request failed", err)
	}

	if tok.AccessToken == "" {
		return "", NewError(c.name, StageExchange, 0, "token response has no access token", nil)
	}

	return tok.AccessToken, nil
}

// GetJSON performs an authenticated GET and decodes the JSON body into out.
// Non-2xx responses become *Error with StageProfile.
func (c *OAuthClient) GetJSON(ctx context.Context, url, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NewError(c.name, StageProfile, 0, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(c.name, StageProfile, 0, "profile request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return NewError(c.name, StageProfile, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewError(c.name, StageProfile, resp.StatusCode, "profile endpoint returned an error", errors.New(snippet(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewError(c.name, StageProfile, resp.StatusCode, "failed to decode profile", err)
	}
	return nil
}

// JoinURL appends path to base without doubling slashes
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return fmt.Sprintf("body: %s", s)
}
