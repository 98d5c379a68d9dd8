// Package webhook receives Meta webhook deliveries for Instagram accounts and
// manages the app subscription that produces them.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/brizzai/insta-auth/internal/auth/constants"
	"github.com/brizzai/insta-auth/internal/auth/middleware"
	"github.com/brizzai/insta-auth/internal/config"
	"github.com/brizzai/insta-auth/internal/logger"
	"github.com/brizzai/insta-auth/internal/requester"
	"github.com/brizzai/insta-auth/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	maxBodySize   = 1 << 20
	eventReceived = "EVENT_RECEIVED"
)

// Handler serves the webhook endpoints.
type Handler struct {
	verifyToken   string
	appSecret     string
	dispatcher    *Dispatcher
	subscriptions *SubscriptionClient
	log           *zap.Logger
}

type HandlerParams struct {
	fx.In

	Config     *config.Config
	Requester  *requester.HTTPRequester
	Dispatcher *Dispatcher `optional:"true"`
	Logger     *zap.Logger `optional:"true"`
}

// NewHandler creates the webhook handler. The subscription edge always lives
// on the Facebook Graph API, whatever the sign-in flow.
func NewHandler(p HandlerParams) *Handler {
	cfg := p.Config
	appID := cfg.Webhook.AppID
	if appID == "" {
		appID = cfg.OAuth.ClientID
	}
	callbackURL := cfg.Webhook.CallbackURL
	if callbackURL == "" {
		callbackURL = strings.TrimRight(cfg.Server.BaseURL, "/") + "/webhook"
	}
	version := cfg.OAuth.GraphVersion
	if version == "" {
		version = constants.DefaultGraphVersion
	}

	log := logger.OrNop(p.Logger)
	dispatcher := p.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(log)
	}

	return &Handler{
		verifyToken:   cfg.Webhook.VerifyToken,
		appSecret:     cfg.Webhook.AppSecret,
		dispatcher:    dispatcher,
		subscriptions: NewSubscriptionClient(fmt.Sprintf(constants.BusinessLoginGraphURLFormat, version), appID, callbackURL, cfg.Webhook.VerifyToken, p.Requester),
		log:           log.Named("webhook"),
	}
}

// RegisterRoutes mounts the webhook endpoints. Subscription management runs
// behind authenticate.
func (h *Handler) RegisterRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Get("/webhook", h.HandleVerify)
	r.Post("/webhook", h.HandleEvent)
	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Post("/webhook/subscriptions", h.HandleSubscribe)
		r.Get("/webhook/subscriptions", h.HandleListSubscriptions)
		r.Delete("/webhook/subscriptions", h.HandleUnsubscribe)
	})
}

// HandleVerify answers the subscription verification handshake.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	h.log.Info("Verification request received",
		zap.String("mode", mode),
		zap.Bool("has_token", token != ""),
		zap.Bool("has_challenge", challenge != ""),
	)

	if mode == "" || token == "" {
		h.log.Warn("Verification failed, missing parameters")
		_ = utils.WriteError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.log.Warn("Verification failed, invalid token or mode")
		_ = utils.WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// HandleEvent accepts a signed delivery and dispatches its changes.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		_ = utils.WriteError(w, http.StatusBadRequest, "Bad Request")
		return
	}

	if !VerifySignature(h.appSecret, body, r.Header.Get(SignatureHeader)) {
		h.log.Warn("Rejected delivery with invalid signature",
			zap.Bool("has_signature", r.Header.Get(SignatureHeader) != ""),
		)
		_ = utils.WriteError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		h.log.Warn("Delivery is not valid JSON", zap.Error(err))
		_ = utils.WriteError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	if n.Object != ObjectInstagram {
		h.log.Warn("Invalid object type", zap.String("object", n.Object))
		_ = utils.WriteError(w, http.StatusNotFound, "Not Found")
		return
	}

	h.log.Info("Event received", zap.Int("entries", len(n.Entry)))
	h.dispatcher.Dispatch(r.Context(), &n)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, eventReceived)
}

type subscriptionResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// HandleSubscribe subscribes the app to the Instagram fields.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.subscriptions.Subscribe(r.Context(), info.AccessToken)
	if err != nil {
		h.writeGraphError(w, "Failed to subscribe to webhooks", err)
		return
	}
	h.log.Info("Subscription successful", zap.String("user_id", info.UserID))
	_ = utils.WriteJSON(w, http.StatusOK, subscriptionResponse{Success: true, Data: result})
}

// HandleListSubscriptions returns the app subscriptions as reported by the
// Graph API.
func (h *Handler) HandleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.subscriptions.List(r.Context(), info.AccessToken)
	if err != nil {
		h.writeGraphError(w, "Failed to get subscriptions", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, result)
}

// HandleUnsubscribe removes the subscription for the "object" query
// parameter, instagram by default.
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.subscriptions.Unsubscribe(r.Context(), info.AccessToken, r.URL.Query().Get("object"))
	if err != nil {
		h.writeGraphError(w, "Failed to unsubscribe from webhooks", err)
		return
	}
	h.log.Info("Unsubscribe successful", zap.String("user_id", info.UserID))
	_ = utils.WriteJSON(w, http.StatusOK, subscriptionResponse{Success: true, Data: result})
}

func (h *Handler) writeGraphError(w http.ResponseWriter, message string, err error) {
	h.log.Error(message, zap.Error(err))
	details := err.Error()
	var apiErr *requester.APIError
	if errors.As(err, &apiErr) {
		details = apiErr.Message
	}
	_ = utils.WriteErrorDetails(w, http.StatusInternalServerError, message, details)
}

var Module = fx.Module("webhook",
	fx.Provide(
		func(log *zap.Logger) *Dispatcher { return NewDispatcher(log) },
		NewHandler,
	),
)
