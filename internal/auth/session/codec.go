package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer     = "insta-auth"
	defaultTTL = 30 * 24 * time.Hour
)

type claims struct {
	AccessToken string `json:"at"`
	Name        string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with HS256. Tokens are signed, not
// encrypted: whoever holds the cookie can read the access token inside it, so
// the cookie is HttpOnly and should be Secure outside local development.
type Codec struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
	secure     bool
	now        func() time.Time
}

// NewCodec creates a codec from the session configuration.
func NewCodec(cfg *config.SessionConfig) (*Codec, error) {
	if cfg == nil || cfg.Secret == "" {
		return nil, fmt.Errorf("%w: session.secret", config.ErrMissingConfig)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	name := cfg.CookieName
	if name == "" {
		name = "insta_auth.session"
	}
	return &Codec{
		secret:     []byte(cfg.Secret),
		ttl:        ttl,
		cookieName: name,
		secure:     cfg.SecureCookie,
		now:        time.Now,
	}, nil
}

// CookieName is the name of the session cookie.
func (c *Codec) CookieName() string { return c.cookieName }

// TTL is the lifetime of an encoded session.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode signs s. Incomplete records are refused.
func (c *Codec) Encode(s *models.Session) (string, error) {
	if s == nil || s.AccessToken == "" || s.UserID == "" {
		return "", models.ErrIncompleteSession
	}
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AccessToken: s.AccessToken,
		Name:        s.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and returns the session it carries.
func (c *Codec) Decode(raw string) (*models.Session, error) {
	if raw == "" {
		return nil, models.ErrInvalidSession
	}
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, errors.Join(models.ErrInvalidSession, err)
	}
	if cl.Subject == "" || cl.AccessToken == "" {
		return nil, models.ErrInvalidSession
	}
	return &models.Session{
		AccessToken: cl.AccessToken,
		UserID:      cl.Subject,
		Name:        cl.Name,
	}, nil
}

// Cookie wraps an encoded session in the session cookie.
func (c *Codec) Cookie(raw string) *http.Cookie {
	return &http.Cookie{
		Name:     c.cookieName,
		Value:    raw,
		Path:     "/",
		Expires:  c.now().Add(c.ttl),
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (c *Codec) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// FromRequest decodes the session cookie of r.
func (c *Codec) FromRequest(r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return nil, models.ErrInvalidSession
	}
	return c.Decode(cookie.Value)
}
