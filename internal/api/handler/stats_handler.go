package handler

import (
	"net/http"

	"github.com/inkwell/courier/internal/repository"
)

// StatsHandler serves a human-readable JSON snapshot of the delivery queue.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type StatsHandler struct {
	queue       repository.QueueRepository
	subscribers repository.SubscriberRepository
}

func NewStatsHandler(queue repository.QueueRepository, subscribers repository.SubscriberRepository) *StatsHandler {
	return &StatsHandler{queue: queue, subscribers: subscribers}
}

// GetStats handles GET /api/v1/metrics
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}

	confirmed, err := h.subscribers.ListConfirmed(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count subscribers")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth":           depth,
		"confirmed_subscribers": len(confirmed),
	})
}
