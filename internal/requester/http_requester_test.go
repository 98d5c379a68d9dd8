package requester_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/brizzai/insta-auth/internal/requester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequester() *requester.HTTPRequester {
	return requester.NewHTTPRequester(requester.HTTPRequesterParams{})
}

func TestGetJSON(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		checkResponse  func(t *testing.T, target map[string]any, err error)
	}{
		{
			name: "success with token as url parameter",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
				assert.Equal(t, "id,username", r.URL.Query().Get("fields"))
				assert.Empty(t, r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"id":"1","username":"alice"}`))
			},
			checkResponse: func(t *testing.T, target map[string]any, err error) {
				require.NoError(t, err)
				assert.Equal(t, "alice", target["username"])
			},
		},
		{
			name: "error object on 200",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"error":{"message":"Invalid token","type":"OAuthException","code":190}}`))
			},
			checkResponse: func(t *testing.T, target map[string]any, err error) {
				var apiErr *requester.APIError
				require.True(t, errors.As(err, &apiErr), "got %v", err)
				assert.Equal(t, http.StatusOK, apiErr.Status)
				assert.Equal(t, "Invalid token", apiErr.Message)
				assert.Equal(t, "OAuthException", apiErr.Type)
				assert.Equal(t, 190, apiErr.Code)
				assert.Empty(t, target)
			},
		},
		{
			name: "legacy flat error shape",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error_type":"OAuthException","code":400,"error_message":"Matching code was not found or was already used"}`))
			},
			checkResponse: func(t *testing.T, target map[string]any, err error) {
				var apiErr *requester.APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusBadRequest, apiErr.Status)
				assert.Equal(t, "Matching code was not found or was already used", apiErr.Message)
			},
		},
		{
			name: "non json failure body",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream down"))
			},
			checkResponse: func(t *testing.T, target map[string]any, err error) {
				var apiErr *requester.APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, http.StatusBadGateway, apiErr.Status)
				assert.Equal(t, "upstream down", apiErr.Message)
				assert.Equal(t, []byte("upstream down"), apiErr.Body)
			},
		},
		{
			name: "null error field is not a failure",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"id":"1","error":null}`))
			},
			checkResponse: func(t *testing.T, target map[string]any, err error) {
				require.NoError(t, err)
				assert.Equal(t, "1", target["id"])
			},
		},
		{
			name: "invalid json on 200",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			checkResponse: func(t *testing.T, target map[string]any, err error) {
				require.Error(t, err)
				var apiErr *requester.APIError
				assert.False(t, errors.As(err, &apiErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			target := map[string]any{}
			err := newRequester().GetJSON(context.Background(), server.URL+"/me", url.Values{
				"fields":       {"id,username"},
				"access_token": {"tok"},
			}, &target)
			tt.checkResponse(t, target, err)
		})
	}
}

func TestGetKeepsExistingQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("after"))
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := newRequester().Get(context.Background(), server.URL+"/me/media?after=abc", url.Values{"access_token": {"tok"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	r := requester.NewHTTPRequester(requester.HTTPRequesterParams{
		Client: &http.Client{Timeout: 20 * time.Millisecond},
	})
	_, err := r.Get(context.Background(), server.URL, nil)
	assert.Error(t, err)
}

func TestRequestCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRequester().Get(ctx, "http://127.0.0.1:1/never", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://graph.instagram.com/me?fields=id&access_token=secret-token&code=c")
	require.NoError(t, err)

	got := requester.RedactURL(u)
	assert.NotContains(t, got, "secret-token")
	assert.Contains(t, got, "access_token=REDACTED")
	assert.Contains(t, got, "code=REDACTED")
	assert.Contains(t, got, "fields=id")
	assert.Equal(t, "secret-token", u.Query().Get("access_token"))
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer server.Close()

	resp, err := newRequester().Stream(context.Background(), server.URL+"/v/t51/photo.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}
