package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/auth/session"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T) *session.Codec {
	t.Helper()
	codec, err := session.NewCodec(&config.SessionConfig{Secret: "test-secret", CookieName: "sess"})
	require.NoError(t, err)
	return codec
}

func echoAuth(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(info.UserID + ":" + info.AccessToken))
	})
}

func TestAuthenticate(t *testing.T) {
	codec := newCodec(t)
	raw, err := codec.Encode(&models.Session{AccessToken: "tok1", UserID: "999", Name: "alice"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "cookie",
			setup:      func(r *http.Request) { r.AddCookie(codec.Cookie(raw)) },
			wantStatus: http.StatusOK,
			wantBody:   "999:tok1",
		},
		{
			name:       "bearer header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+raw) },
			wantStatus: http.StatusOK,
			wantBody:   "999:tok1",
		},
		{
			name:       "no credentials",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid cookie",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "sess", Value: "forged"}) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "raw instagram token as bearer",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer IGQVJtok1") },
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/instagram/user", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			Authenticate(codec, nil)(echoAuth(t)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := FromContext(req.Context())
	assert.False(t, ok)

	ctx := WithAuthInfo(req.Context(), &AuthInfo{UserID: "1"})
	info, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "1", info.UserID)
}

func TestCORSWithOrigins(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantAllow  string
		wantCreds  string
		wantStatus int
	}{
		{name: "allowed origin", origins: []string{"https://app.example.com"}, origin: "https://app.example.com", method: http.MethodGet, wantAllow: "https://app.example.com", wantCreds: "true", wantStatus: http.StatusTeapot},
		{name: "other origin", origins: []string{"https://app.example.com"}, origin: "https://evil.example.com", method: http.MethodGet, wantStatus: http.StatusTeapot},
		{name: "wildcard", origins: []string{"*"}, origin: "https://any.example.com", method: http.MethodGet, wantAllow: "*", wantStatus: http.StatusTeapot},
		{name: "empty list", origin: "https://evil.example", method: http.MethodGet, wantAllow: "*", wantStatus: http.StatusTeapot},
		{name: "wildcard alongside listed origin", origins: []string{"*", "https://app.example.com"}, origin: "https://evil.example", method: http.MethodGet, wantStatus: http.StatusTeapot},
		{name: "preflight", origins: []string{"https://app.example.com"}, origin: "https://app.example.com", method: http.MethodOptions, wantAllow: "https://app.example.com", wantCreds: "true", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/auth/session", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORSWithOrigins(tt.origins)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
