// Package session turns a resolved Instagram identity into the session record
// the API handlers consume, and carries that record in a signed cookie.
package session

import (
	"github.com/brizzai/insta-auth/internal/auth/models"
	"golang.org/x/oauth2"
)

// Project builds the session record for identity and token. It has no side
// effects; a record is returned only when both fields are non-empty.
func Project(identity *models.Identity, token *oauth2.Token) (*models.Session, error) {
	if identity == nil || token == nil {
		return nil, models.ErrIncompleteSession
	}
	if token.AccessToken == "" || identity.ExternalID == "" {
		return nil, models.ErrIncompleteSession
	}
	return &models.Session{
		AccessToken: token.AccessToken,
		UserID:      identity.ExternalID,
		Name:        identity.DisplayName,
	}, nil
}
