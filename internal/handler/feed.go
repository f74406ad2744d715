package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"resellhub-api/internal/repository"
	"resellhub-api/internal/service"
	"resellhub-api/pkg/apierror"
	"resellhub-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// FeedHandler handles sync feed HTTP requests.
type FeedHandler struct {
	orchestrator *service.SyncOrchestrator
	queueService *service.QueueService
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(orchestrator *service.SyncOrchestrator, queueService *service.QueueService) *FeedHandler {
	return &FeedHandler{
		orchestrator: orchestrator,
		queueService: queueService,
	}
}

// CreateFeedRequest selects the submission mode for a new feed.
type CreateFeedRequest struct {
	DryRun      bool `json:"dry_run"`
	SinglePhase bool `json:"single_phase"`
}

// CreateFeed handles POST /api/v1/feeds
// Aggregates the current queue and submits the conflict-free entries as a
// new feed. Conflicted ASINs are reported and left in the queue.
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req CreateFeedRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, apierror.BadRequest("failed to read request body"))
		return
	}
	defer r.Body.Close()

	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			response.Error(w, apierror.BadRequest("invalid JSON"))
			return
		}
	}

	preview, err := h.queueService.Preview(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}

	if len(preview.Entries) == 0 {
		if len(preview.Conflicts) > 0 {
			response.Error(w, apierror.Conflict("all queued items have price conflicts; resolve them before submitting"))
			return
		}
		response.Error(w, apierror.BadRequest("sync queue is empty"))
		return
	}

	feed, err := h.orchestrator.CreateFeed(r.Context(), preview.Entries, service.CreateFeedOptions{
		DryRun:      req.DryRun,
		SinglePhase: req.SinglePhase,
	})
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, map[string]interface{}{
		"feed":      feed,
		"conflicts": preview.Conflicts,
	})
}

// Poll handles POST /api/v1/feeds/{feed_id}/poll
// The same idempotent poll the background scheduler runs.
func (h *FeedHandler) Poll(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "feed_id")
	feed, err := h.orchestrator.Poll(r.Context(), feedID)
	if err != nil {
		response.Error(w, mapFeedError(err))
		return
	}
	response.OK(w, feed)
}

// Cancel handles POST /api/v1/feeds/{feed_id}/cancel
func (h *FeedHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "feed_id")
	feed, err := h.orchestrator.Cancel(r.Context(), feedID)
	if err != nil {
		response.Error(w, mapFeedError(err))
		return
	}
	response.OK(w, feed)
}

// Get handles GET /api/v1/feeds/{feed_id}
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "feed_id")
	feed, err := h.orchestrator.GetStatus(r.Context(), feedID)
	if err != nil {
		response.Error(w, mapFeedError(err))
		return
	}
	response.OK(w, feed)
}

// Lines handles GET /api/v1/feeds/{feed_id}/lines
func (h *FeedHandler) Lines(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "feed_id")
	lines, err := h.orchestrator.GetLineResults(r.Context(), feedID)
	if err != nil {
		response.Error(w, mapFeedError(err))
		return
	}
	response.OK(w, map[string]interface{}{
		"feed_id": feedID,
		"lines":   lines,
	})
}

// ListActive handles GET /api/v1/feeds
func (h *FeedHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.orchestrator.ListActiveFeeds(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"feeds": feeds,
		"count": len(feeds),
	})
}

func mapFeedError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound("feed not found")
	}
	return err
}
