package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/session"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/utils"
	"go.uber.org/zap"
)

// authContextKey is the key type for the context
type authContextKey string

const (
	// AuthContextKey is used to store auth info in the request context
	AuthContextKey authContextKey = "auth"
)

// AuthInfo is the session record attached to an authenticated request.
type AuthInfo struct {
	UserID      string
	AccessToken string
	Name        string
}

// FromContext returns the auth info stored by Authenticate.
func FromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(AuthContextKey).(*AuthInfo)
	return info, ok && info != nil
}

// WithAuthInfo returns a copy of ctx carrying info.
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, AuthContextKey, info)
}

// Authenticate decodes the session from the session cookie or a bearer
// header and rejects the request with 401 when there is none.
func Authenticate(codec *session.Codec, log *zap.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log).Named("auth.middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r, codec.CookieName())
			if raw == "" {
				_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			sess, err := codec.Decode(raw)
			if err != nil {
				log.Debug("Rejected session",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := WithAuthInfo(r.Context(), &AuthInfo{
				UserID:      sess.UserID,
				AccessToken: sess.AccessToken,
				Name:        sess.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORSWithOrigins reflects listed origins with credentials allowed, so the
// session cookie is sent. An empty list or "*" answers with a literal "*" and
// no credentials.
func CORSWithOrigins(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o != "*" && o != "" {
			allowed = append(allowed, o)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				h := w.Header()
				h.Add("Vary", "Origin")
				switch {
				case slices.Contains(allowed, origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Credentials", "true")
				case len(allowed) == 0:
					h.Set("Access-Control-Allow-Origin", "*")
				}
				if h.Get("Access-Control-Allow-Origin") != "" {
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
					h.Set("Access-Control-Expose-Headers", "Content-Disposition")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken returns the session token from the Authorization header, or
// the session cookie when there is no bearer header.
func extractToken(r *http.Request, cookieName string) string {
	authHeader := r.Header.Get(constants.AuthHeaderName)
	if strings.HasPrefix(authHeader, constants.AuthHeaderPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, constants.AuthHeaderPrefix))
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}
