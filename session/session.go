// Package session keeps the signed session token in a browser cookie and
// carries the short-lived cookies of the OAuth round trip.
package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/eloboost/config"
	"github.com/upb/eloboost/token"
)

const (
	StateCookie    = "oauth_state"
	RedirectCookie = "redirect_after_login"

	stateMaxAge = 10 * time.Minute
)

// Issuer mints session tokens
type Issuer interface {
	Issue(id token.Identity, ttl time.Duration) (string, error)
}

// Settings holds the cookie attributes and token lifetime
type Settings struct {
	CookieName    string
	Path          string
	Domain        string
	HTTPOnly      bool
	Secure        bool
	SameSite      http.SameSite
	LoginMaxAge   time.Duration
	RefreshMaxAge time.Duration
	TokenTTL      time.Duration
}

// SettingsFromConfig maps the auth config section onto Settings
func SettingsFromConfig(a config.AuthConfig) Settings {
	return Settings{
		CookieName:    a.CookieName,
		Path:          a.CookiePath,
		Domain:        a.CookieDomain,
		HTTPOnly:      a.CookieHTTPOnly,
		Secure:        a.CookieSecure,
		SameSite:      a.SameSite(),
		LoginMaxAge:   a.LoginCookieMaxAge,
		RefreshMaxAge: a.CookieMaxAge,
		TokenTTL:      a.TokenTTL,
	}
}

// Manager writes and clears session cookies
type Manager struct {
	settings Settings
	issuer   Issuer
}

// NewManager creates a session manager
func NewManager(settings Settings, issuer Issuer) *Manager {
	if settings.CookieName == "" {
		settings.CookieName = "auth_token"
	}
	if settings.Path == "" {
		settings.Path = "/"
	}
	return &Manager{settings: settings, issuer: issuer}
}

// CookieName returns the name of the session cookie
func (m *Manager) CookieName() string {
	return m.settings.CookieName
}

// TokenFromRequest returns the bearer token, falling back to the session cookie
func (m *Manager) TokenFromRequest(r *http.Request) string {
	return TokenFromRequest(r, m.settings.CookieName)
}

// TokenFromRequest extracts a token from "Authorization: Bearer" or the
// named cookie. It returns "" when neither carries one.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if t := strings.TrimSpace(parts[1]); t != "" {
				return t
			}
		}
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// Start issues a token after an OAuth login and sets the long-lived cookie
func (m *Manager) Start(w http.ResponseWriter, id token.Identity) (string, error) {
	return m.write(w, id, m.settings.LoginMaxAge)
}

// Refresh re-issues the token with a fresh expiry and rewrites the cookie
func (m *Manager) Refresh(w http.ResponseWriter, id token.Identity) (string, error) {
	return m.write(w, id, m.settings.RefreshMaxAge)
}

func (m *Manager) write(w http.ResponseWriter, id token.Identity, maxAge time.Duration) (string, error) {
	tok, err := m.issuer.Issue(id, m.settings.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue session token: %w", err)
	}
	http.SetCookie(w, m.cookie(m.settings.CookieName, tok, maxAge))
	return tok, nil
}

// Clear expires the session cookie
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.expired(m.settings.CookieName))
}

// NewState returns a random OAuth state value
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetState stores the OAuth state for the callback to compare
func (m *Manager) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, m.cookie(StateCookie, state, stateMaxAge))
}

// ConsumeState clears the state cookie and reports whether it matched got
func (m *Manager) ConsumeState(w http.ResponseWriter, r *http.Request, got string) bool {
	c, err := r.Cookie(StateCookie)
	http.SetCookie(w, m.expired(StateCookie))
	if err != nil || c.Value == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(got)) == 1
}

// SetRedirect remembers where to send the browser after login. Unsafe
// targets are ignored.
func (m *Manager) SetRedirect(w http.ResponseWriter, target string) {
	if !SafeRedirect(target) {
		return
	}
	http.SetCookie(w, m.cookie(RedirectCookie, url.QueryEscape(target), stateMaxAge))
}

// PopRedirect returns and clears the stored post-login target, or fallback
func (m *Manager) PopRedirect(w http.ResponseWriter, r *http.Request, fallback string) string {
	c, err := r.Cookie(RedirectCookie)
	if err != nil {
		return fallback
	}
	http.SetCookie(w, m.expired(RedirectCookie))

	target, err := url.QueryUnescape(c.Value)
	if err != nil || !SafeRedirect(target) {
		return fallback
	}
	return target
}

// SafeRedirect accepts only same-origin relative paths
func SafeRedirect(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}

func (m *Manager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.settings.Path,
		Domain:   m.settings.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: m.settings.HTTPOnly,
		Secure:   m.settings.Secure,
		SameSite: m.settings.SameSite,
	}
}

func (m *Manager) expired(name string) *http.Cookie {
	c := m.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
