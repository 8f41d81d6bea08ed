package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/eloboost/models"
)

var (
	// ErrExpired is returned when the token's expiry has passed
	ErrExpired = errors.New("token expired")

	// ErrMalformed is returned for a bad signature, a foreign algorithm,
	// broken structure or a missing subject
	ErrMalformed = errors.New("malformed token")
)

// Identity is the set of user facts carried inside a session token
type Identity struct {
	UserID    string
	Username  string
	Email     string
	Avatar    string
	IsOwner   bool
	IsBooster bool
}

// Role returns the role derived from the identity's flags
func (i Identity) Role() models.Role {
	return models.DeriveRole(i.IsOwner, i.IsBooster)
}

// Summary returns the client payload for an identity that has no stored record
func (i Identity) Summary() models.UserSummary {
	return models.UserSummary{
		ID:        i.UserID,
		Username:  i.Username,
		Email:     i.Email,
		Avatar:    i.Avatar,
		IsOwner:   i.IsOwner,
		IsBooster: i.IsBooster,
	}
}

// IdentityFromUser builds the token identity for a stored user
func IdentityFromUser(u *models.User) Identity {
	return Identity{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Avatar:    u.Avatar,
		IsOwner:   u.IsOwner,
		IsBooster: u.IsBooster,
	}
}

// Claims represents the signed payload of a session token.
// UserID duplicates the subject for clients that read user_id.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	IsOwner   bool   `json:"is_owner"`
	IsBooster bool   `json:"is_booster"`
	Avatar    string `json:"avatar"`
}

// Identity returns the user facts carried by the claims
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:    c.Subject,
		Username:  c.Username,
		Email:     c.Email,
		Avatar:    c.Avatar,
		IsOwner:   c.IsOwner,
		IsBooster: c.IsBooster,
	}
}

// Role returns the role derived from the claim flags
func (c *Claims) Role() models.Role {
	return models.DeriveRole(c.IsOwner, c.IsBooster)
}

// Expiry returns the expiry time, or the zero time when absent
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Option configures a Codec
type Option func(*Codec)

// WithClock replaces the time source used for iat, exp and expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec issues and verifies HS256 session tokens
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a codec signing with the given symmetric secret
func NewCodec(secret string, opts ...Option) *Codec {
	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue mints a token for id valid for ttl from now
func (c *Codec) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(c.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if id.UserID == "" {
		return "", errors.New("token subject is required")
	}

	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    id.UserID,
		Username:  id.Username,
		Email:     id.Email,
		IsOwner:   id.IsOwner,
		IsBooster: id.IsBooster,
		Avatar:    id.Avatar,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the claims.
// Failures are ErrExpired or wrap ErrMalformed.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	if len(c.secret) == 0 {
		return nil, fmt.Errorf("%w: secret is not configured", ErrMalformed)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}

	return claims, nil
}
