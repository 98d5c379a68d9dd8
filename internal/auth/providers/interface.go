package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/requester"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Strategy is one Instagram authentication generation. Exactly one is chosen
// at startup from configuration.
type Strategy interface {
	// Flow names the configured variant
	Flow() config.Flow

	// AuthURL returns the provider consent URL carrying state
	AuthURL(state string) string

	// Exchange trades an authorization code for an access token
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Resolve derives the canonical Instagram identity behind a token
	Resolve(ctx context.Context, token *oauth2.Token) (*models.Identity, error)
}

// Endpoints are the provider URLs a strategy talks to.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	GraphURL string
}

// DefaultEndpoints returns the production endpoints for flow.
func DefaultEndpoints(flow config.Flow, graphVersion string) Endpoints {
	if graphVersion == "" {
		graphVersion = constants.DefaultGraphVersion
	}
	switch flow {
	case config.FlowBusinessLogin:
		graph := fmt.Sprintf(constants.BusinessLoginGraphURLFormat, graphVersion)
		return Endpoints{
			AuthURL:  fmt.Sprintf(constants.BusinessLoginAuthURLFormat, graphVersion),
			TokenURL: graph + "/oauth/access_token",
			GraphURL: graph,
		}
	default:
		return Endpoints{
			AuthURL:  constants.BasicDisplayAuthURL,
			TokenURL: constants.BasicDisplayTokenURL,
			GraphURL: constants.BasicDisplayGraphURL,
		}
	}
}

// Options configure a strategy.
type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoints    Endpoints
	Requester    *requester.HTTPRequester
	Logger       *zap.Logger
}

// oauth2Config builds the consent URL configuration. Instagram wants the
// scopes comma separated, so they are passed to oauth2 as a single value.
func (o Options) oauth2Config(defaultScopes []string) *oauth2.Config {
	scopes := o.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   o.Endpoints.AuthURL,
			TokenURL:  o.Endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: []string{strings.Join(scopes, ",")},
	}
}

// NewStrategy selects the strategy configured by cfg.OAuth.Flow.
func NewStrategy(cfg *config.Config, req *requester.HTTPRequester, log *zap.Logger) (Strategy, error) {
	opts := Options{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       cfg.OAuth.Scopes,
		Endpoints:    DefaultEndpoints(cfg.OAuth.Flow, cfg.OAuth.GraphVersion),
		Requester:    req,
		Logger:       log,
	}

	switch cfg.OAuth.Flow {
	case config.FlowBasicDisplay:
		return NewBasicDisplay(opts), nil
	case config.FlowBusinessLogin:
		return NewBusinessLogin(opts), nil
	default:
		return nil, fmt.Errorf("unsupported oauth flow: %s", cfg.OAuth.Flow)
	}
}
