// Package handler composes the HTTP router: sign-in routes, the session
// authenticated Instagram API, webhooks, health and metrics.
package handler

import (
	"net/http"
	"time"

	"github.com/brizzai/insta-auth/internal/auth"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/instagram"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/metrics"
	"github.com/brizzai/insta-auth/internal/utils"
	"github.com/brizzai/insta-auth/internal/webhook"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceName = "insta-auth"

// Handler manages HTTP request handling and middleware configuration.
type Handler struct {
	config    *config.Config
	auth      *auth.Service
	instagram *instagram.Client
	webhook   *webhook.Handler
	metrics   *metrics.Recorder
	log       *zap.Logger
	now       func() time.Time
}

type Params struct {
	fx.In

	Config    *config.Config
	Auth      *auth.Service
	Instagram *instagram.Client
	Webhook   *webhook.Handler  `optional:"true"`
	Metrics   *metrics.Recorder `optional:"true"`
	Logger    *zap.Logger       `optional:"true"`
}

// NewHandler creates a new HTTP handler.
func NewHandler(p Params) *Handler {
	return &Handler{
		config:    p.Config,
		auth:      p.Auth,
		instagram: p.Instagram,
		webhook:   p.Webhook,
		metrics:   p.Metrics,
		log:       logger.OrNop(p.Logger).Named("gateway"),
		now:       time.Now,
	}
}

// CreateHTTPHandler builds the router with its middleware stack.
func (h *Handler) CreateHTTPHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if h.config.Metrics.Enabled {
		r.Use(h.metrics.Middleware)
	}

	r.Get("/health", h.HandleHealth)
	if h.config.Metrics.Enabled && h.metrics != nil {
		r.Method(http.MethodGet, h.metricsPath(), h.metrics.Handler())
		h.log.Info("Exposing metrics", zap.String("path", h.metricsPath()))
	}

	h.auth.RegisterRoutes(r)
	h.log.Info("Registered authentication routes", zap.String("flow", string(h.auth.Strategy().Flow())))

	r.Route("/api/instagram", func(r chi.Router) {
		r.Use(h.auth.Authenticate())
		r.Get("/user", h.HandleUser)
		r.Get("/media", h.HandleMedia)
		r.Get("/download", h.HandleDownload)
	})

	if h.config.Webhook.Enabled && h.webhook != nil {
		h.webhook.RegisterRoutes(r, h.auth.Authenticate())
		h.log.Info("Registered webhook routes")
	}

	return h.auth.WrapWithMiddleware(r)
}

func (h *Handler) metricsPath() string {
	if h.config.Metrics.Path == "" {
		return "/metrics"
	}
	return h.config.Metrics.Path
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Timestamp: h.now().UTC().Format(time.RFC3339),
	})
}
