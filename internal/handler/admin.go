package handler

import (
	"net/http"

	"resellhub-api/internal/repository"
	"resellhub-api/internal/service"
	"resellhub-api/pkg/response"
)

// AdminHandler exposes operational stats for the sync pipeline.
type AdminHandler struct {
	feedRepo     repository.FeedRepository
	queueService *service.QueueService
	dbType       string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(feedRepo repository.FeedRepository, queueService *service.QueueService, dbType string) *AdminHandler {
	return &AdminHandler{
		feedRepo:     feedRepo,
		queueService: queueService,
		dbType:       dbType,
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"db_type": h.dbType,
	}

	if h.feedRepo != nil {
		counts, err := h.feedRepo.CountByStatus(r.Context())
		if err != nil {
			response.Error(w, err)
			return
		}
		var active int64
		for status, count := range counts {
			if !status.IsTerminal() {
				active += count
			}
		}
		stats["feeds_by_status"] = counts
		stats["active_feeds"] = active
	}

	if h.queueService != nil {
		queued, err := h.queueService.Count(r.Context())
		if err != nil {
			response.Error(w, err)
			return
		}
		stats["queue_depth"] = queued
	}

	response.OK(w, stats)
}
