package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/requester"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// TokenExchanger trades an authorization code for an access token with a
// single call to the provider's token endpoint.
type TokenExchanger struct {
	clientID     string
	clientSecret string
	tokenURL     string
	requester    *requester.HTTPRequester
	log          *zap.Logger
}

// NewTokenExchanger creates an exchanger for the given token endpoint.
func NewTokenExchanger(clientID, clientSecret, tokenURL string, req *requester.HTTPRequester, log *zap.Logger) *TokenExchanger {
	return &TokenExchanger{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		requester:    req,
		log:          logger.OrNop(log).Named("auth.exchange"),
	}
}

// tokenResponse covers both shapes: Basic Display answers
// {access_token, user_id}, Business Login {access_token, token_type, expires_in}.
type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	UserID      json.Number `json:"user_id"`
}

// Exchange trades code for a token. redirectURI must be the exact value sent
// in the authorization request.
func (e *TokenExchanger) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, models.ErrMissingCode
	}

	e.log.Debug("Exchanging authorization code", zap.String("token_url", e.tokenURL))

	params := url.Values{
		"client_id":     {e.clientID},
		"client_secret": {e.clientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}

	resp, err := e.requester.Get(ctx, e.tokenURL, params)
	if err != nil {
		e.log.Error("Token exchange request failed", zap.Error(err))
		return nil, &models.TokenExchangeError{Message: err.Error()}
	}

	if apiErr := resp.Err(); apiErr != nil {
		e.log.Error("Provider rejected authorization code",
			zap.Int("status", apiErr.Status),
			zap.String("error_type", apiErr.Type),
			zap.String("error", apiErr.Message),
		)
		return nil, &models.TokenExchangeError{Status: apiErr.Status, Message: apiErr.Message}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		e.log.Error("Token response is not valid JSON", zap.Int("status", resp.StatusCode), zap.Error(err))
		return nil, &models.TokenExchangeError{Status: resp.StatusCode, Message: "invalid token response"}
	}
	if tr.AccessToken == "" {
		e.log.Error("Token response has no access token", zap.Int("status", resp.StatusCode))
		return nil, &models.TokenExchangeError{Status: resp.StatusCode, Message: "empty access token"}
	}

	token := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if token.TokenType == "" {
		token.TokenType = "bearer"
	}
	if tr.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	extra := map[string]any{}
	if tr.UserID != "" {
		extra["user_id"] = tr.UserID.String()
	}
	token = token.WithExtra(extra)

	e.log.Info("Authorization code exchanged",
		zap.Bool("has_access_token", true),
		zap.Bool("has_expiry", !token.Expiry.IsZero()),
	)
	return token, nil
}

// userFetchError converts a requester failure into the sign-in taxonomy.
func userFetchError(step string, err error) *models.UserFetchError {
	var apiErr *requester.APIError
	if errors.As(err, &apiErr) {
		return &models.UserFetchError{
			Step:    step,
			Status:  apiErr.Status,
			Message: apiErr.Message,
			Body:    apiErr.Body,
		}
	}
	return &models.UserFetchError{Step: step, Message: err.Error()}
}
