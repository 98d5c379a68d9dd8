package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brizzai/insta-auth/internal/auth/middleware"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/requester"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVerifyToken = "verify-me"
	testAppSecret   = "app-secret"
)

func newTestHandler(t *testing.T, graphURL string) *Handler {
	t.Helper()
	h := NewHandler(HandlerParams{
		Config: &config.Config{
			Server: config.ServerConfig{BaseURL: "https://app.example.com"},
			OAuth:  config.OAuthConfig{ClientID: "app-1"},
			Webhook: config.WebhookConfig{
				Enabled:     true,
				VerifyToken: testVerifyToken,
				AppSecret:   testAppSecret,
			},
		},
		Requester: requester.NewHTTPRequester(requester.HTTPRequesterParams{}),
	})
	require.NotNil(t, h.subscriptions)
	require.NotNil(t, h.dispatcher)
	if graphURL != "" {
		h.subscriptions.graphURL = graphURL
	}
	return h
}

// fakeAuth attaches a session without decoding a cookie.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithAuthInfo(r.Context(), &middleware.AuthInfo{UserID: "999", AccessToken: "tok1"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"instagram"}`)
	valid := SignatureValue(testAppSecret, body)

	tests := []struct {
		name   string
		header string
		secret string
		want   bool
	}{
		{name: "valid", header: valid, secret: testAppSecret, want: true},
		{name: "missing", header: "", secret: testAppSecret},
		{name: "wrong algorithm", header: strings.Replace(valid, "sha256", "sha1", 1), secret: testAppSecret},
		{name: "not hex", header: "sha256=zzzz", secret: testAppSecret},
		{name: "no separator", header: "sha256", secret: testAppSecret},
		{name: "wrong secret", header: valid, secret: "other"},
		{name: "empty secret", header: SignatureValue("", body), secret: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.secret, body, tt.header))
		})
	}
}

func TestHandleVerify(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", query: "hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", wantStatus: http.StatusOK, wantBody: "12345"},
		{name: "wrong token", query: "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", wantStatus: http.StatusForbidden},
		{name: "wrong mode", query: "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345", wantStatus: http.StatusForbidden},
		{name: "missing token", query: "hub.mode=subscribe&hub.challenge=12345", wantStatus: http.StatusBadRequest},
		{name: "missing everything", query: "", wantStatus: http.StatusBadRequest},
	}

	h := newTestHandler(t, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleVerify(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
			}
		})
	}
}

func TestHandleEvent(t *testing.T) {
	instagramBody := `{"object":"instagram","entry":[{"id":"17841400000000000","time":1700000000,"changes":[
		{"field":"comments","value":{"id":"c1","text":"nice"}},
		{"field":"mentions","value":{"media_id":"m1"}},
		{"field":"unknown_field","value":{}}
	]}]}`

	tests := []struct {
		name       string
		body       string
		signature  func(body string) string
		wantStatus int
		wantBody   string
		wantFields []string
	}{
		{
			name:       "instagram event",
			body:       instagramBody,
			signature:  func(b string) string { return SignatureValue(testAppSecret, []byte(b)) },
			wantStatus: http.StatusOK,
			wantBody:   "EVENT_RECEIVED",
			wantFields: []string{"comments", "mentions"},
		},
		{
			name:       "bad signature",
			body:       instagramBody,
			signature:  func(b string) string { return SignatureValue("wrong", []byte(b)) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no signature",
			body:       instagramBody,
			signature:  func(string) string { return "" },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "other object",
			body:       `{"object":"page","entry":[]}`,
			signature:  func(b string) string { return SignatureValue(testAppSecret, []byte(b)) },
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid json",
			body:       `{`,
			signature:  func(b string) string { return SignatureValue(testAppSecret, []byte(b)) },
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, "")
			var got []string
			for _, field := range SubscribedFields {
				h.dispatcher.Register(field, func(_ context.Context, entry Entry, change Change) error {
					assert.Equal(t, "17841400000000000", entry.ID)
					got = append(got, change.Field)
					return nil
				})
			}

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			if sig := tt.signature(tt.body); sig != "" {
				req.Header.Set(SignatureHeader, sig)
			}
			rec := httptest.NewRecorder()
			h.HandleEvent(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestDispatcherContinuesAfterHandlerError(t *testing.T) {
	d := NewDispatcher(nil)
	calls := 0
	d.Register(FieldMedia, func(context.Context, Entry, Change) error {
		calls++
		return errors.New("boom")
	})

	require.NotNil(t, d)
	d.Dispatch(context.Background(), &Notification{
		Object: ObjectInstagram,
		Entry: []Entry{{ID: "1", Changes: []Change{
			{Field: FieldMedia},
			{Field: FieldMedia},
		}}},
	})
	assert.Equal(t, 2, calls)
}

func TestSubscriptionRoutes(t *testing.T) {
	var seen []string
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method)
		assert.Equal(t, "/app-1/subscriptions", r.URL.Path)
		assert.Equal(t, "tok1", r.URL.Query().Get("access_token"))

		switch r.Method {
		case http.MethodPost:
			q := r.URL.Query()
			assert.Equal(t, "instagram", q.Get("object"))
			assert.Equal(t, "https://app.example.com/webhook", q.Get("callback_url"))
			assert.Equal(t, testVerifyToken, q.Get("verify_token"))
			assert.Equal(t, "comments,mentions,media,story_insights", q.Get("fields"))
			_, _ = w.Write([]byte(`{"success":true}`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"data":[{"object":"instagram","active":true}]}`))
		case http.MethodDelete:
			assert.Equal(t, "instagram", r.URL.Query().Get("object"))
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer graph.Close()

	h := newTestHandler(t, graph.URL)
	r := chi.NewRouter()
	h.RegisterRoutes(r, fakeAuth)

	for _, tc := range []struct {
		method string
		want   string
	}{
		{http.MethodPost, `{"success":true,"data":{"success":true}}`},
		{http.MethodGet, `{"data":[{"object":"instagram","active":true}]}`},
		{http.MethodDelete, `{"success":true,"data":{"success":true}}`},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, "/webhook/subscriptions", nil))
		assert.Equal(t, http.StatusOK, rec.Code, tc.method)
		assert.JSONEq(t, tc.want, rec.Body.String(), tc.method)
	}
	assert.Equal(t, []string{http.MethodPost, http.MethodGet, http.MethodDelete}, seen)
}

func TestSubscriptionGraphError(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"(#100) Invalid callback url","type":"OAuthException","code":100}}`))
	}))
	defer graph.Close()

	h := newTestHandler(t, graph.URL)
	r := chi.NewRouter()
	h.RegisterRoutes(r, fakeAuth)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/subscriptions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to subscribe to webhooks","details":"(#100) Invalid callback url"}`, rec.Body.String())
}

func TestSubscriptionsRequireSession(t *testing.T) {
	h := newTestHandler(t, "")
	rec := httptest.NewRecorder()
	h.HandleSubscribe(rec, httptest.NewRequest(http.MethodPost, "/webhook/subscriptions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
