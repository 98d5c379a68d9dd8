package auth

import (
	"net/http"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/handlers"
	"github.com/brizzai/insta-auth/internal/auth/middleware"
	"github.com/brizzai/insta-auth/internal/auth/providers"
	"github.com/brizzai/insta-auth/internal/auth/session"
	"github.com/brizzai/insta-auth/internal/auth/state"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/metrics"
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service represents the sign-in service
type Service struct {
	config   *config.Config
	strategy providers.Strategy
	codec    *session.Codec
	handler  *handlers.Handler
	log      *zap.Logger
}

type ServiceParams struct {
	fx.In

	Config   *config.Config
	Strategy providers.Strategy
	States   *state.Service
	Codec    *session.Codec
	Metrics  *metrics.Recorder `optional:"true"`
	Logger   *zap.Logger       `optional:"true"`
}

// NewService creates a new sign-in service
func NewService(p ServiceParams) *Service {
	log := logger.OrNop(p.Logger)
	handler := handlers.NewHandler(p.Strategy, p.States, p.Codec, p.Metrics, handlers.Options{
		SignInPath:    p.Config.OAuth.SignInPath,
		DashboardPath: p.Config.OAuth.DashboardPath,
	}, log)

	return &Service{
		config:   p.Config,
		strategy: p.Strategy,
		codec:    p.Codec,
		handler:  handler,
		log:      log,
	}
}

// RegisterRoutes registers all sign-in routes
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/api/auth/signin", s.handler.HandleSignIn)
	r.Get(s.CallbackPath(), s.handler.HandleCallback)
	r.Get("/api/auth/session", s.handler.HandleSession)
	r.Post("/api/auth/signout", s.handler.HandleSignOut)
	r.Get("/api/auth/signout", s.handler.HandleSignOut)
}

// WrapWithMiddleware wraps the router with CORS handling
func (s *Service) WrapWithMiddleware(handler http.Handler) http.Handler {
	return middleware.CORSWithOrigins(s.config.OAuth.AllowOrigins)(handler)
}

// Authenticate returns the session authentication middleware
func (s *Service) Authenticate() func(http.Handler) http.Handler {
	return middleware.Authenticate(s.codec, s.log)
}

// Strategy returns the configured authentication strategy
func (s *Service) Strategy() providers.Strategy {
	return s.strategy
}

// CallbackPath is the path the provider redirects back to.
func (s *Service) CallbackPath() string {
	if s.config.OAuth.RedirectPath != "" {
		return s.config.OAuth.RedirectPath
	}
	return "/api/auth/callback/" + constants.ProviderName
}

// Module wires the sign-in flow
var Module = fx.Module("auth",
	session.Module,
	state.Module,
	fx.Provide(
		providers.NewStrategy,
		NewService,
	),
)
