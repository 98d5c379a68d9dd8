package requester

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// redactedParams never reach the logs in clear text.
var redactedParams = []string{"access_token", "client_secret", "code", "input_token"}

// HTTPRequester executes Graph API calls. Credentials travel as URL
// parameters, which is how the Instagram and Facebook endpoints expect them.
type HTTPRequester struct {
	client  *http.Client
	log     *zap.Logger
	metrics *metrics.Recorder
}

type HTTPRequesterParams struct {
	fx.In

	Client  *http.Client      `optional:"true"`
	Logger  *zap.Logger       `optional:"true"`
	Metrics *metrics.Recorder `optional:"true"`
}

// NewHTTPRequester creates a new HTTPRequester. Timeouts are left to the
// HTTP client; there are no retries.
func NewHTTPRequester(params HTTPRequesterParams) *HTTPRequester {
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPRequester{
		client:  client,
		log:     logger.OrNop(params.Logger).Named("requester"),
		metrics: params.Metrics,
	}
}

// Get performs a GET with params merged into the URL query.
func (r *HTTPRequester) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return r.Do(ctx, http.MethodGet, rawURL, params)
}

// GetJSON performs a GET and decodes a successful body into target. Provider
// error objects fail the call even when the status is 2xx.
func (r *HTTPRequester) GetJSON(ctx context.Context, rawURL string, params url.Values, target any) error {
	return r.DoJSON(ctx, http.MethodGet, rawURL, params, target)
}

// DoJSON is GetJSON for an arbitrary method.
func (r *HTTPRequester) DoJSON(ctx context.Context, method, rawURL string, params url.Values, target any) error {
	resp, err := r.Do(ctx, method, rawURL, params)
	if err != nil {
		return err
	}
	if apiErr := resp.Err(); apiErr != nil {
		return apiErr
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Do performs the request and reads the whole body.
func (r *HTTPRequester) Do(ctx context.Context, method, rawURL string, params url.Values) (*Response, error) {
	httpResp, err := r.send(ctx, method, rawURL, params, "application/json")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			r.log.Error("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Headers:    httpResp.Header,
	}, nil
}

// Stream performs a GET for binary content and hands back the open response.
// The caller closes the body.
func (r *HTTPRequester) Stream(ctx context.Context, rawURL string) (*http.Response, error) {
	return r.send(ctx, http.MethodGet, rawURL, nil, "*/*")
}

func (r *HTTPRequester) send(ctx context.Context, method, rawURL string, params url.Values, accept string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url: %w", err)
	}
	if len(params) > 0 {
		q := u.Query()
		for key, values := range params {
			for i, v := range values {
				if i == 0 {
					q.Set(key, v)
				} else {
					q.Add(key, v)
				}
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	logURL := RedactURL(u)
	r.log.Debug("sending request", zap.String("method", method), zap.String("url", logURL))

	start := time.Now()
	resp, err := r.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		r.metrics.ProviderCall(u.Path, duration, true)
		r.log.Error("request failed",
			zap.String("method", method),
			zap.String("url", logURL),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("request failed: %w", err)
	}

	r.metrics.ProviderCall(u.Path, duration, resp.StatusCode >= http.StatusBadRequest)
	r.log.Debug("request completed",
		zap.String("method", method),
		zap.String("url", logURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return resp, nil
}

// RedactURL renders u with credential parameters masked.
func RedactURL(u *url.URL) string {
	q := u.Query()
	changed := false
	for _, key := range redactedParams {
		if q.Has(key) {
			q.Set(key, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
