// Package handler contains the HTTP layer: it parses requests, delegates to
// the service layer, and writes responses. No business logic lives here.
package handler

import (
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/githubapp/internal/apperror"
	"github.com/sakif/githubapp/internal/service"
)

// WebhookHandler receives GitHub webhook deliveries.
type WebhookHandler struct {
	dispatcher *service.Dispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(dispatcher *service.Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, logger: logger}
}

// HandleWebhook is POST {webhook path}.
//
// GitHub sends the event name and delivery guid as headers and the payload
// as a JSON body. Anything malformed — wrong content type, missing event
// header, bad signature, unparseable body — is a 400 so GitHub marks the
// delivery as failed without redelivering it; a handler crash is a 500 so
// GitHub retries.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		writeError(w, apperror.Validation("Content-Type must be application/json"))
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	if event == "" {
		writeError(w, apperror.Validation("Missing X-GitHub-Event header"))
		return
	}
	deliveryID := r.Header.Get("X-GitHub-Delivery")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperror.Validation("Failed to read request body"))
		return
	}

	result, err := h.dispatcher.Dispatch(
		r.Context(),
		deliveryID,
		event,
		body,
		r.Header.Get("X-Hub-Signature-256"),
		r.Header.Get("X-Hub-Signature"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
