// Package state issues and checks the OAuth state parameter. A state is a
// short-lived signed token that can be consumed once, which also makes each
// authorization callback usable only once.
package state

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/fx"
)

const (
	DefaultTTL = 10 * time.Minute
	audience   = "insta-auth.state"
)

// Service generates and consumes state tokens.
type Service struct {
	key      []byte
	ttl      time.Duration
	consumed *gocache.Cache
	now      func() time.Time
}

// NewService creates a state service. The signing key is derived from the
// session secret and differs from the session key.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: session.secret", config.ErrMissingConfig)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	key := sha256.Sum256([]byte("oauth-state:" + secret))
	return &Service{
		key:      key[:],
		ttl:      ttl,
		consumed: gocache.New(ttl, time.Minute),
		now:      time.Now,
	}, nil
}

// Generate returns a fresh state token.
func (s *Service) Generate() (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.NewString(),
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Consume validates raw and marks it used. A second call with the same token
// fails with ErrStateReused.
func (s *Service) Consume(raw string) error {
	if raw == "" {
		return models.ErrInvalidState
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return errors.Join(models.ErrInvalidState, err)
	}
	if claims.ID == "" {
		return models.ErrInvalidState
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		ttl = time.Second
	}
	// Add fails when the nonce is already present
	if err := s.consumed.Add(claims.ID, struct{}{}, ttl); err != nil {
		return models.ErrStateReused
	}
	return nil
}

var Module = fx.Module("state",
	fx.Provide(func(cfg *config.Config) (*Service, error) {
		return NewService(cfg.Session.Secret, DefaultTTL)
	}),
)
