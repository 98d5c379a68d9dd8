package models

import (
	"errors"
	"fmt"
)

var (
	// Sign-in errors
	ErrTokenExchange           = errors.New("token exchange failed")
	ErrUserFetch               = errors.New("failed to fetch user from provider")
	ErrNoBusinessAccountLinked = errors.New("no instagram business account linked")
	ErrMissingCode             = errors.New("missing authorization code")

	// Session errors
	ErrIncompleteSession = errors.New("session requires both access token and user id")
	ErrInvalidSession    = errors.New("invalid session token")

	// State errors
	ErrInvalidState = errors.New("invalid state token")
	ErrStateReused  = errors.New("state token already consumed")
)

// TokenExchangeError reports that the provider rejected or could not process
// the authorization code.
type TokenExchangeError struct {
	Status  int
	Message string
}

func (e *TokenExchangeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", ErrTokenExchange, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", ErrTokenExchange, e.Message)
}

func (e *TokenExchangeError) Unwrap() error { return ErrTokenExchange }

// UserFetchError reports that an identity lookup call failed, either at the
// transport level or through a provider error object.
type UserFetchError struct {
	Step    string
	Status  int
	Message string
	Body    []byte
}

func (e *UserFetchError) Error() string {
	return fmt.Sprintf("%s (%s): status %d: %s", ErrUserFetch, e.Step, e.Status, e.Message)
}

func (e *UserFetchError) Unwrap() error { return ErrUserFetch }

// NoBusinessAccountLinkedError means the token and identity calls succeeded
// but none of the user's pages links an Instagram Business Account. The user
// has to fix this upstream, so it is reported apart from transient failures.
type NoBusinessAccountLinkedError struct {
	PagesChecked int
}

func (e *NoBusinessAccountLinkedError) Error() string {
	return fmt.Sprintf("%s: checked %d page(s)", ErrNoBusinessAccountLinked, e.PagesChecked)
}

func (e *NoBusinessAccountLinkedError) Unwrap() error { return ErrNoBusinessAccountLinked }
