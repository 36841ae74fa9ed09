package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/githubapp/internal/model"
	"github.com/sakif/githubapp/internal/repository"
)

// DeliveryHandler serves the webhook delivery audit log.
type DeliveryHandler struct {
	deliveries repository.DeliveryRepository
	logger     *slog.Logger
}

// NewDeliveryHandler creates a DeliveryHandler.
func NewDeliveryHandler(deliveries repository.DeliveryRepository, logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries, logger: logger}
}

// DeliveryListResponse is the body of GET /api/deliveries.
type DeliveryListResponse struct {
	Deliveries []model.DeliveryRecord `json:"deliveries"`
}

// HandleList is GET /api/deliveries?limit=N&offset=M, newest first.
// The route sits behind the session middleware, so only logged-in users see
// the log.
func (h *DeliveryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.deliveries.List(r.Context(), repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error("failed to list deliveries", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeliveryListResponse{Deliveries: records})
}
