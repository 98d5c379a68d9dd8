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

// BusinessLogin is the Facebook Login for Business flow. The token belongs to
// a Facebook user; the Instagram Business Account is found through the Pages
// that user administers.
type BusinessLogin struct {
	oauth2Config *oauth2.Config
	exchanger    *TokenExchanger
	graphURL     string
	requester    *requester.HTTPRequester
	log          *zap.Logger
}

func NewBusinessLogin(opts Options) *BusinessLogin {
	log := logger.OrNop(opts.Logger)
	return &BusinessLogin{
		oauth2Config: opts.oauth2Config(constants.BusinessLoginScopes),
		exchanger:    NewTokenExchanger(opts.ClientID, opts.ClientSecret, opts.Endpoints.TokenURL, opts.Requester, log),
		graphURL:     opts.Endpoints.GraphURL,
		requester:    opts.Requester,
		log:          log.Named("auth.resolver").With(zap.String("flow", string(config.FlowBusinessLogin))),
	}
}

func (p *BusinessLogin) Flow() config.Flow { return config.FlowBusinessLogin }

func (p *BusinessLogin) AuthURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state)
}

func (p *BusinessLogin) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.exchanger.Exchange(ctx, code, p.oauth2Config.RedirectURL)
}

type facebookUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type accountsResponse struct {
	Data []models.CandidatePage `json:"data"`
}

// Resolve runs me, then me/accounts, strictly in that order, and picks the
// Instagram Business Account of the first page that has one.
//
// First match depends on the order the Graph API lists pages, which is not
// contractually stable for users with several linked accounts.
func (p *BusinessLogin) Resolve(ctx context.Context, token *oauth2.Token) (*models.Identity, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &models.UserFetchError{Step: "me", Message: "empty access token"}
	}

	p.log.Debug("Confirming token against me endpoint")

	var me facebookUser
	err := p.requester.GetJSON(ctx, p.graphURL+"/me", url.Values{
		"fields":                   {constants.BusinessLoginMeFields},
		constants.AccessTokenParam: {token.AccessToken},
	}, &me)
	if err != nil {
		fetchErr := userFetchError("me", err)
		p.log.Error("Failed to fetch facebook user",
			zap.Int("status", fetchErr.Status),
			zap.String("error", fetchErr.Message),
		)
		return nil, fetchErr
	}
	if me.ID == "" {
		return nil, &models.UserFetchError{Step: "me", Status: http.StatusOK, Message: "response has no id"}
	}

	var accounts accountsResponse
	err = p.requester.GetJSON(ctx, p.graphURL+"/me/accounts", url.Values{
		"fields":                   {constants.AccountsFields},
		constants.AccessTokenParam: {token.AccessToken},
	}, &accounts)
	if err != nil {
		fetchErr := userFetchError("accounts", err)
		p.log.Error("Failed to list pages",
			zap.String("facebook_user_id", me.ID),
			zap.Int("status", fetchErr.Status),
			zap.String("error", fetchErr.Message),
		)
		return nil, fetchErr
	}

	page, account := firstLinkedAccount(accounts.Data)
	if account == nil {
		p.log.Warn("No page links an Instagram Business Account",
			zap.String("facebook_user_id", me.ID),
			zap.Int("pages_checked", len(accounts.Data)),
		)
		return nil, &models.NoBusinessAccountLinkedError{PagesChecked: len(accounts.Data)}
	}

	p.log.Info("Resolved Instagram Business Account",
		zap.String("facebook_user_id", me.ID),
		zap.String("page_id", page.ID),
		zap.String("page_name", page.Name),
		zap.String("user_id", account.ID),
		zap.String("username", account.Username),
		zap.Int("pages_listed", len(accounts.Data)),
	)

	identity := &models.Identity{
		ExternalID:  account.ID,
		DisplayName: account.Username,
	}
	if account.ProfilePictureURL != "" {
		avatar := account.ProfilePictureURL
		identity.AvatarURL = &avatar
	}
	return identity, nil
}

func firstLinkedAccount(pages []models.CandidatePage) (*models.CandidatePage, *models.InstagramBusinessAccount) {
	for i := range pages {
		if iba := pages[i].InstagramBusinessAccount; iba != nil && iba.ID != "" {
			return &pages[i], iba
		}
	}
	return nil, nil
}
