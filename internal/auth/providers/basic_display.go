package providers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/requester"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// BasicDisplay is the legacy Instagram Basic Display flow. The token
// authenticates the Instagram user directly, so one "me" call is the identity.
type BasicDisplay struct {
	oauth2Config *oauth2.Config
	exchanger    *TokenExchanger
	graphURL     string
	requester    *requester.HTTPRequester
	log          *zap.Logger
}

func NewBasicDisplay(opts Options) *BasicDisplay {
	log := logger.OrNop(opts.Logger)
	return &BasicDisplay{
		oauth2Config: opts.oauth2Config(constants.BasicDisplayScopes),
		exchanger:    NewTokenExchanger(opts.ClientID, opts.ClientSecret, opts.Endpoints.TokenURL, opts.Requester, log),
		graphURL:     opts.Endpoints.GraphURL,
		requester:    opts.Requester,
		log:          log.Named("auth.resolver").With(zap.String("flow", string(config.FlowBasicDisplay))),
	}
}

func (p *BasicDisplay) Flow() config.Flow { return config.FlowBasicDisplay }

func (p *BasicDisplay) AuthURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

func (p *BasicDisplay) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.exchanger.Exchange(ctx, code, p.oauth2Config.RedirectURL)
}

type basicDisplayUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AccountType string `json:"account_type"`
	MediaCount  int    `json:"media_count"`
}

func (p *BasicDisplay) Resolve(ctx context.Context, token *oauth2.Token) (*models.Identity, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &models.UserFetchError{Step: "me", Message: "empty access token"}
	}

	p.log.Debug("Fetching user info with access token")

	var me basicDisplayUser
	err := p.requester.GetJSON(ctx, p.graphURL+"/me", url.Values{
		"fields":                   {constants.BasicDisplayMeFields},
		constants.AccessTokenParam: {token.AccessToken},
	}, &me)
	if err != nil {
		fetchErr := userFetchError("me", err)
		p.log.Error("Failed to fetch user info",
			zap.Int("status", fetchErr.Status),
			zap.String("error", fetchErr.Message),
			zap.ByteString("body", fetchErr.Body),
		)
		return nil, fetchErr
	}
	if me.ID == "" {
		p.log.Error("User info response has no id")
		return nil, &models.UserFetchError{Step: "me", Status: http.StatusOK, Message: "response has no id"}
	}

	p.log.Info("Successfully fetched user info",
		zap.String("user_id", me.ID),
		zap.String("username", me.Username),
		zap.String("account_type", me.AccountType),
	)

	return &models.Identity{
		ExternalID:  me.ID,
		DisplayName: me.Username,
		AccountType: me.AccountType,
		MediaCount:  me.MediaCount,
	}, nil
}
