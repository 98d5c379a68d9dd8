// Package instagram reads profile and media data for the signed-in account
// through the Graph API matching the configured sign-in flow.
package instagram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/providers"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/requester"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxDownloadSize = 64 << 20

var (
	ErrInvalidMediaURL = errors.New("media url must be an absolute http or https url")
	ErrMediaTooLarge   = errors.New("media exceeds the download size limit")
	ErrMediaHost       = errors.New("media host is not an Instagram CDN")
)

// Client reads Graph API data with a session access token.
type Client struct {
	flow       config.Flow
	graphURL   string
	mediaHosts []string
	requester  *requester.HTTPRequester
	log        *zap.Logger
	now        func() time.Time
}

type ClientParams struct {
	fx.In

	Config    *config.Config
	Requester *requester.HTTPRequester
	Logger    *zap.Logger `optional:"true"`
}

// NewClient creates a client for the configured flow.
func NewClient(p ClientParams) *Client {
	endpoints := providers.DefaultEndpoints(p.Config.OAuth.Flow, p.Config.OAuth.GraphVersion)
	return NewClientWithGraphURL(p.Config.OAuth.Flow, endpoints.GraphURL, p.Requester, p.Logger)
}

// NewClientWithGraphURL creates a client against an explicit Graph API root.
func NewClientWithGraphURL(flow config.Flow, graphURL string, req *requester.HTTPRequester, log *zap.Logger) *Client {
	return &Client{
		flow:       flow,
		graphURL:   strings.TrimRight(graphURL, "/"),
		mediaHosts: constants.MediaHostSuffixes,
		requester:  req,
		log:        logger.OrNop(log).Named("gateway"),
		now:        time.Now,
	}
}

// WithMediaHosts replaces the host suffixes Download accepts.
func (c *Client) WithMediaHosts(suffixes ...string) *Client {
	c.mediaHosts = suffixes
	return c
}

// allowedHost reports whether host equals or is a subdomain of an accepted
// media host suffix.
func (c *Client) allowedHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, suffix := range c.mediaHosts {
		suffix = strings.ToLower(suffix)
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// node is the Graph node of the account: "me" for Basic Display, the
// Instagram Business Account id for Business Login.
func (c *Client) node(userID string) string {
	if c.flow == config.FlowBusinessLogin && userID != "" {
		return url.PathEscape(userID)
	}
	return "me"
}

// Profile fetches the account profile.
func (c *Client) Profile(ctx context.Context, userID, accessToken string) (*User, error) {
	fields := constants.BasicDisplayMeFields
	if c.flow == config.FlowBusinessLogin {
		fields = constants.BusinessProfileFields
	}

	var user User
	err := c.requester.GetJSON(ctx, c.graphURL+"/"+c.node(userID), url.Values{
		"fields":                   {fields},
		constants.AccessTokenParam: {accessToken},
	}, &user)
	if err != nil {
		c.log.Error("Failed to fetch profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	c.log.Info("Fetched profile",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Int("media_count", user.MediaCount),
	)
	return &user, nil
}

// Media fetches one page of posts. after is the cursor of the previous page.
func (c *Client) Media(ctx context.Context, userID, accessToken, after string) (*MediaPage, error) {
	params := url.Values{
		"fields":                   {constants.MediaFields},
		constants.AccessTokenParam: {accessToken},
	}
	if after != "" {
		params.Set("after", after)
	}

	var page MediaPage
	if err := c.requester.GetJSON(ctx, c.graphURL+"/"+c.node(userID)+"/media", params, &page); err != nil {
		c.log.Error("Failed to fetch media", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	c.log.Info("Fetched media",
		zap.Int("media_count", len(page.Data)),
		zap.Bool("has_next_page", page.Paging != nil && page.Paging.Next != ""),
	)
	return &page, nil
}

// Download fetches a media file from an Instagram CDN host. Upstream failures
// are returned as *requester.APIError carrying the upstream status.
func (c *Client) Download(ctx context.Context, rawURL string) (*Download, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidMediaURL
	}
	if !c.allowedHost(u.Hostname()) {
		c.log.Warn("Rejected media host", zap.String("host", u.Hostname()))
		return nil, ErrMediaHost
	}

	resp, err := c.requester.Stream(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error("Failed to close media body", zap.Error(err))
		}
	}()

	// Redirects are followed by the transport, so the final host is checked too.
	if resp.Request != nil && resp.Request.URL != nil && !c.allowedHost(resp.Request.URL.Hostname()) {
		c.log.Warn("Media redirected off CDN", zap.String("host", resp.Request.URL.Hostname()))
		return nil, ErrMediaHost
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("Failed to fetch media file",
			zap.Int("status", resp.StatusCode),
			zap.String("host", u.Host),
		)
		return nil, &requester.APIError{Status: resp.StatusCode, Message: "Failed to download image"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	if len(body) > maxDownloadSize {
		return nil, ErrMediaTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	d := &Download{
		ContentType: contentType,
		Filename:    fmt.Sprintf("instagram_%d.%s", c.now().UnixMilli(), extension(contentType)),
		Body:        body,
	}

	c.log.Info("Downloaded media",
		zap.String("content_type", d.ContentType),
		zap.Int("size", len(d.Body)),
		zap.String("filename", d.Filename),
	)
	return d, nil
}

// extension derives the file extension from the media subtype of a
// content type, "image/png; charset=x" giving "png".
func extension(contentType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	_, sub, ok := strings.Cut(mediaType, "/")
	if !ok || sub == "" {
		return "jpg"
	}
	return sub
}

// Status returns the HTTP status to report for err.
func Status(err error) int {
	var apiErr *requester.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status >= 400:
		return apiErr.Status
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidMediaURL), errors.Is(err, ErrMediaHost):
		return http.StatusBadRequest
	case errors.Is(err, ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

var Module = fx.Module("instagram",
	fx.Provide(NewClient),
)
