package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"resellhub-api/internal/repository"
	"resellhub-api/internal/service"
	"resellhub-api/pkg/apierror"
	"resellhub-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// QueueHandler handles sync queue HTTP requests.
type QueueHandler struct {
	queueService *service.QueueService
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(queueService *service.QueueService) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
	}
}

// Mark handles POST /api/v1/queue/items
func (h *QueueHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var req service.MarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	item, err := h.queueService.Mark(r.Context(), req)
	if err != nil {
		response.Error(w, apierror.BadRequest(err.Error()))
		return
	}
	response.Created(w, item)
}

// Unmark handles DELETE /api/v1/queue/items/{inventory_item_id}
func (h *QueueHandler) Unmark(w http.ResponseWriter, r *http.Request) {
	inventoryItemID := chi.URLParam(r, "inventory_item_id")
	if inventoryItemID == "" {
		response.Error(w, apierror.BadRequest("inventory_item_id is required"))
		return
	}

	err := h.queueService.Unmark(r.Context(), inventoryItemID)
	if errors.Is(err, repository.ErrNotFound) {
		response.Error(w, apierror.NotFound("item is not queued"))
		return
	}
	if err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// List handles GET /api/v1/queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.queueService.Snapshot(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// Preview handles GET /api/v1/queue/aggregation
// Returns the per-ASIN entries and price conflicts the next feed would be
// built from.
func (h *QueueHandler) Preview(w http.ResponseWriter, r *http.Request) {
	result, err := h.queueService.Preview(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}
