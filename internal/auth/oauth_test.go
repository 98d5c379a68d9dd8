package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/auth/providers"
	"github.com/brizzai/insta-auth/internal/auth/session"
	"github.com/brizzai/insta-auth/internal/auth/state"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// mockStrategy implements providers.Strategy for testing
type mockStrategy struct{}

func (m *mockStrategy) Flow() config.Flow { return config.FlowBasicDisplay }
func (m *mockStrategy) AuthURL(st string) string {
	return "https://provider.example.com/authorize?state=" + url.QueryEscape(st)
}
func (m *mockStrategy) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "tok1"}, nil
}
func (m *mockStrategy) Resolve(ctx context.Context, token *oauth2.Token) (*models.Identity, error) {
	return &models.Identity{ExternalID: "999", DisplayName: "alice"}, nil
}

var _ providers.Strategy = (*mockStrategy)(nil)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: "http://localhost:3000"},
		OAuth: config.OAuthConfig{
			RedirectPath:  "/api/auth/callback/instagram",
			SignInPath:    "/",
			DashboardPath: "/dashboard",
			AllowOrigins:  []string{"http://localhost:5173"},
		},
	}
	states, err := state.NewService("secret", time.Minute)
	require.NoError(t, err)
	codec, err := session.NewCodec(&config.SessionConfig{Secret: "secret"})
	require.NoError(t, err)

	return NewService(ServiceParams{
		Config:   cfg,
		Strategy: &mockStrategy{},
		States:   states,
		Codec:    codec,
	})
}

func TestNewService(t *testing.T) {
	service := newTestService(t)
	assert.NotNil(t, service.handler)
	assert.Equal(t, config.FlowBasicDisplay, service.Strategy().Flow())
	assert.Equal(t, "/api/auth/callback/instagram", service.CallbackPath())
}

func TestRegisterRoutes(t *testing.T) {
	service := newTestService(t)
	r := chi.NewRouter()
	service.RegisterRoutes(r)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/signin"},
		{http.MethodGet, "/api/auth/callback/instagram"},
		{http.MethodGet, "/api/auth/session"},
		{http.MethodPost, "/api/auth/signout"},
		{http.MethodGet, "/api/auth/signout"},
	}
	for _, route := range routes {
		rctx := chi.NewRouteContext()
		assert.True(t, r.Match(rctx, route.method, route.path), "route %s %s not registered", route.method, route.path)
	}
}

func TestSignInRoundTrip(t *testing.T) {
	service := newTestService(t)
	r := chi.NewRouter()
	service.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(srv.URL + "/api/auth/signin")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp, err = client.Get(srv.URL + "/api/auth/callback/instagram?code=abc123&state=" + url.QueryEscape(loc.Query().Get("state")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	require.Len(t, resp.Cookies(), 1)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/session", nil)
	require.NoError(t, err)
	req.AddCookie(resp.Cookies()[0])
	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWrapWithCors(t *testing.T) {
	service := newTestService(t)
	h := service.WrapWithMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/session", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthenticateMiddleware(t *testing.T) {
	service := newTestService(t)
	h := service.Authenticate()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/instagram/user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
