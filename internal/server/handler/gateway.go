package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/brizzai/insta-auth/internal/auth/middleware"
	"github.com/brizzai/insta-auth/internal/instagram"
	"github.com/brizzai/insta-auth/internal/requester"
	"github.com/brizzai/insta-auth/internal/utils"
	"go.uber.org/zap"
)

// HandleUser returns the profile of the signed-in account.
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		h.log.Warn("Unauthorized access attempt", zap.String("path", r.URL.Path))
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.instagram.Profile(r.Context(), info.UserID, info.AccessToken)
	if err != nil {
		h.writeUpstreamError(w, err, "Failed to fetch user data")
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, user)
}

// HandleMedia returns one page of posts. The "after" query parameter is the
// paging cursor.
func (h *Handler) HandleMedia(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		h.log.Warn("Unauthorized access attempt", zap.String("path", r.URL.Path))
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	page, err := h.instagram.Media(r.Context(), info.UserID, info.AccessToken, r.URL.Query().Get("after"))
	if err != nil {
		h.writeUpstreamError(w, err, "Failed to fetch media")
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, page)
}

// HandleDownload proxies a media file as an attachment.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		h.log.Warn("Unauthorized download attempt")
		_ = utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	mediaURL := r.URL.Query().Get("url")
	if mediaURL == "" {
		h.log.Warn("Missing media URL parameter", zap.String("user_id", info.UserID))
		_ = utils.WriteError(w, http.StatusBadRequest, "Media URL is required")
		return
	}

	d, err := h.instagram.Download(r.Context(), mediaURL)
	if err != nil {
		status := instagram.Status(err)
		message := "Failed to download image"
		switch {
		case errors.Is(err, instagram.ErrInvalidMediaURL), errors.Is(err, instagram.ErrMediaHost), errors.Is(err, instagram.ErrMediaTooLarge):
			message = err.Error()
		case status == http.StatusInternalServerError:
			h.log.Error("Unexpected download error", zap.Error(err))
			message = "Internal server error"
		}
		_ = utils.WriteError(w, status, message)
		return
	}

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+d.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(d.Body); err != nil {
		h.log.Debug("Client went away during download", zap.Error(err))
	}
}

// writeUpstreamError passes provider failures through with their status and
// message; anything else is a 500.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error, fallback string) {
	var apiErr *requester.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = fallback
		}
		_ = utils.WriteError(w, instagram.Status(err), message)
		return
	}
	h.log.Error("Unexpected gateway error", zap.Error(err))
	_ = utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
