package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/models"
	"github.com/brizzai/insta-auth/internal/auth/providers"
	"github.com/brizzai/insta-auth/internal/auth/session"
	"github.com/brizzai/insta-auth/internal/auth/state"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/metrics"
	"github.com/brizzai/insta-auth/internal/utils"
	"go.uber.org/zap"
)

// Options holds the redirect targets of the sign-in flow.
type Options struct {
	SignInPath    string
	DashboardPath string
}

// Handler handles the sign-in related HTTP requests
type Handler struct {
	strategy providers.Strategy
	states   *state.Service
	codec    *session.Codec
	metrics  *metrics.Recorder
	opts     Options
	log      *zap.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(strategy providers.Strategy, states *state.Service, codec *session.Codec, rec *metrics.Recorder, opts Options, log *zap.Logger) *Handler {
	if opts.SignInPath == "" {
		opts.SignInPath = "/"
	}
	if opts.DashboardPath == "" {
		opts.DashboardPath = "/dashboard"
	}
	return &Handler{
		strategy: strategy,
		states:   states,
		codec:    codec,
		metrics:  rec,
		opts:     opts,
		log:      logger.OrNop(log).Named("auth.handler").With(zap.String("flow", string(strategy.Flow()))),
	}
}

// SignIn runs exchange, resolve and project in order. Any failure stops the
// pipeline and no session is returned.
func (h *Handler) SignIn(ctx context.Context, code string) (*models.Session, error) {
	token, err := h.strategy.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	identity, err := h.strategy.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return session.Project(identity, token)
}

// HandleSignIn redirects the browser to the provider consent page.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	st, err := h.states.Generate()
	if err != nil {
		h.log.Error("Failed to generate state", zap.Error(err))
		_ = utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	http.Redirect(w, r, h.strategy.AuthURL(st), http.StatusFound)
}

// HandleCallback completes the authorization code flow.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if err := h.states.Consume(q.Get("state")); err != nil {
		h.log.Warn("Rejected callback state", zap.Error(err))
		h.fail(w, r, metrics.ResultInvalidState, constants.SignInErrorAuthFailed)
		return
	}

	if providerErr := q.Get("error"); providerErr != "" {
		h.log.Warn("Provider denied authorization",
			zap.String("error", providerErr),
			zap.String("error_reason", q.Get("error_reason")),
			zap.String("error_description", q.Get("error_description")),
		)
		h.fail(w, r, metrics.ResultProviderDenied, constants.SignInErrorAuthFailed)
		return
	}

	sess, err := h.SignIn(r.Context(), q.Get("code"))
	if err != nil {
		result, code := classify(err)
		h.log.Error("Sign-in failed", zap.String("result", result), zap.Error(err))
		h.fail(w, r, result, code)
		return
	}

	raw, err := h.codec.Encode(sess)
	if err != nil {
		h.log.Error("Failed to encode session", zap.Error(err))
		h.fail(w, r, metrics.ResultError, constants.SignInErrorAuthFailed)
		return
	}

	h.metrics.SignIn(string(h.strategy.Flow()), metrics.ResultSuccess)
	h.log.Info("Signed in", zap.String("user_id", sess.UserID), zap.Bool("has_access_token", sess.AccessToken != ""))

	http.SetCookie(w, h.codec.Cookie(raw))
	http.Redirect(w, r, h.opts.DashboardPath, http.StatusFound)
}

// HandleSignOut clears the session cookie.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.codec.ClearCookie())
	http.Redirect(w, r, h.opts.SignInPath, http.StatusFound)
}

type sessionResponse struct {
	UserID        string `json:"userId"`
	Name          string `json:"name,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// HandleSession reports the current session without its access token.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.codec.FromRequest(r)
	if err != nil {
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := utils.WriteJSON(w, http.StatusOK, sessionResponse{
		UserID:        sess.UserID,
		Name:          sess.Name,
		Authenticated: true,
	}); err != nil {
		h.log.Error("Failed to encode session response", zap.Error(err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, result, code string) {
	h.metrics.SignIn(string(h.strategy.Flow()), result)
	http.Redirect(w, r, h.signInURL(code), http.StatusFound)
}

func (h *Handler) signInURL(code string) string {
	u, err := url.Parse(h.opts.SignInPath)
	if err != nil {
		return "/?error=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("error", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// classify maps a pipeline error to its metrics result and sign-in error code.
func classify(err error) (result, code string) {
	switch {
	case errors.Is(err, models.ErrNoBusinessAccountLinked):
		return metrics.ResultNoBusinessAccount, constants.SignInErrorNoBusinessAccount
	case errors.Is(err, models.ErrTokenExchange), errors.Is(err, models.ErrMissingCode):
		return metrics.ResultExchangeFailed, constants.SignInErrorAuthFailed
	case errors.Is(err, models.ErrUserFetch):
		return metrics.ResultUserFetchFailed, constants.SignInErrorAuthFailed
	default:
		return metrics.ResultError, constants.SignInErrorAuthFailed
	}
}
