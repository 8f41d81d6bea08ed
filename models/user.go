package models

import (
	"time"
)

// Role is the access level derived from the role flags on a user record
type Role string

const (
	RoleOwner     Role = "owner"
	RoleBooster   Role = "booster"
	RoleClient    Role = "client"
	RoleAnonymous Role = "anonymous"
)

// AuthProvider identifies the identity provider a user logged in with
type AuthProvider string

const (
	ProviderDiscord AuthProvider = "discord"
	ProviderGoogle  AuthProvider = "google"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleBooster, RoleClient, RoleAnonymous:
		return true
	}
	return false
}

// DeriveRole maps role flags to a role. Owner takes precedence over booster,
// and a user with neither flag is a client.
func DeriveRole(isOwner, isBooster bool) Role {
	switch {
	case isOwner:
		return RoleOwner
	case isBooster:
		return RoleBooster
	default:
		return RoleClient
	}
}

// LandingPath returns the page a browser with the given role is sent to
// when it navigates somewhere its role may not go.
func LandingPath(role Role) string {
	switch role {
	case RoleOwner:
		return "/owner/dashboard"
	case RoleBooster:
		return "/booster/dashboard"
	case RoleClient:
		return "/dashboard"
	default:
		return "/login"
	}
}

// User represents an account created through an OAuth login
type User struct {
	ID           string       `json:"id" db:"id"`
	Username     string       `json:"username" db:"username"`
	Email        string       `json:"email" db:"email"`
	Avatar       string       `json:"avatar" db:"avatar"`
	IsOwner      bool         `json:"is_owner" db:"is_owner"`
	IsBooster    bool         `json:"is_booster" db:"is_booster"`
	AuthProvider AuthProvider `json:"auth_provider" db:"auth_provider"`

	DiscordID   string `json:"discord_id,omitempty" db:"discord_id"`
	DiscordName string `json:"discord_name,omitempty" db:"discord_name"`
	GoogleID    string `json:"google_id,omitempty" db:"google_id"`
	GoogleName  string `json:"google_name,omitempty" db:"google_name"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	LastLogin time.Time `json:"last_login" db:"last_login"`

	// Last-seen network data. Never returned to clients.
	IPAddress string  `json:"-" db:"ip_address"`
	IPInfo    *IPInfo `json:"-" db:"ip_info"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// Role returns the role derived from the user's flags
func (u *User) Role() Role {
	return DeriveRole(u.IsOwner, u.IsBooster)
}

// LoginRecord carries everything a successful OAuth callback knows about the
// user. It is applied to the store as a create-or-update keyed on the
// provider id.
type LoginRecord struct {
	Provider    AuthProvider
	ProviderID  string
	DisplayName string
	Email       string
	Avatar      string
	IPAddress   string
	IPInfo      *IPInfo
	At          time.Time
}

// NewUserFromLogin builds the record inserted on a user's first login
func NewUserFromLogin(rec LoginRecord) *User {
	u := &User{
		Username:     rec.DisplayName,
		Email:        rec.Email,
		Avatar:       rec.Avatar,
		AuthProvider: rec.Provider,
		CreatedAt:    rec.At,
		LastLogin:    rec.At,
		IPAddress:    rec.IPAddress,
		IPInfo:       rec.IPInfo,
	}
	switch rec.Provider {
	case ProviderDiscord:
		u.DiscordID = rec.ProviderID
		u.DiscordName = rec.DisplayName
	case ProviderGoogle:
		u.GoogleID = rec.ProviderID
		u.GoogleName = rec.DisplayName
	}
	return u
}

// ApplyLogin updates an existing record for a repeat login. Username, email
// and role flags are left alone; the avatar only changes when the provider
// sent one.
func (u *User) ApplyLogin(rec LoginRecord) {
	switch rec.Provider {
	case ProviderDiscord:
		u.DiscordName = rec.DisplayName
	case ProviderGoogle:
		u.GoogleName = rec.DisplayName
	}
	u.LastLogin = rec.At
	u.IPAddress = rec.IPAddress
	u.IPInfo = rec.IPInfo
	u.AuthProvider = rec.Provider
	if rec.Avatar != "" {
		u.Avatar = rec.Avatar
	}
}

// UserSummary is the identity payload returned by the auth endpoints
type UserSummary struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	Avatar       string       `json:"avatar"`
	AuthProvider AuthProvider `json:"auth_provider,omitempty"`
	IsOwner      bool         `json:"is_owner"`
	IsBooster    bool         `json:"is_booster"`
	Online       bool         `json:"online,omitempty"`
}

// Summary strips the user down to the fields safe to hand to a client
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Avatar:       u.Avatar,
		AuthProvider: u.AuthProvider,
		IsOwner:      u.IsOwner,
		IsBooster:    u.IsBooster,
	}
}
