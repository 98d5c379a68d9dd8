package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/requester"
)

// SubscriptionClient manages the app webhook subscription through the Graph
// API subscriptions edge.
type SubscriptionClient struct {
	graphURL    string
	appID       string
	callbackURL string
	verifyToken string
	requester   *requester.HTTPRequester
}

func NewSubscriptionClient(graphURL, appID, callbackURL, verifyToken string, req *requester.HTTPRequester) *SubscriptionClient {
	return &SubscriptionClient{
		graphURL:    strings.TrimRight(graphURL, "/"),
		appID:       appID,
		callbackURL: callbackURL,
		verifyToken: verifyToken,
		requester:   req,
	}
}

func (c *SubscriptionClient) endpoint() string {
	return fmt.Sprintf("%s/%s/subscriptions", c.graphURL, url.PathEscape(c.appID))
}

// Subscribe registers the callback for the Instagram fields.
func (c *SubscriptionClient) Subscribe(ctx context.Context, accessToken string) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.requester.DoJSON(ctx, http.MethodPost, c.endpoint(), url.Values{
		"object":                   {ObjectInstagram},
		"callback_url":             {c.callbackURL},
		"verify_token":             {c.verifyToken},
		"fields":                   {strings.Join(SubscribedFields, ",")},
		constants.AccessTokenParam: {accessToken},
	}, &result)
	return result, err
}

// List returns the current subscriptions.
func (c *SubscriptionClient) List(ctx context.Context, accessToken string) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.requester.GetJSON(ctx, c.endpoint(), url.Values{
		constants.AccessTokenParam: {accessToken},
	}, &result)
	return result, err
}

// Unsubscribe removes the subscription for object.
func (c *SubscriptionClient) Unsubscribe(ctx context.Context, accessToken, object string) (json.RawMessage, error) {
	if object == "" {
		object = ObjectInstagram
	}
	var result json.RawMessage
	err := c.requester.DoJSON(ctx, http.MethodDelete, c.endpoint(), url.Values{
		"object":                   {object},
		constants.AccessTokenParam: {accessToken},
	}, &result)
	return result, err
}
