package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/inkwell/courier/internal/api/middleware"
	"github.com/inkwell/courier/internal/domain"
	"github.com/inkwell/courier/internal/service"
)

// NewsletterHandler handles issue publication endpoints.
type NewsletterHandler struct {
	svc    *service.PublisherService
	logger *zap.Logger
}

func NewNewsletterHandler(svc *service.PublisherService, logger *zap.Logger) *NewsletterHandler {
	return &NewsletterHandler{svc: svc, logger: logger}
}

// Publish handles POST /api/v1/newsletters
//
// @Summary     Publish a newsletter issue to all confirmed subscribers
// @Tags        newsletters
// @Accept      json
// @Produce     json
// @Param       X-Idempotency-Key  header    string                     false  "Idempotency key: retries with the same key reuse the same issue"
// @Param       body               body      domain.PublishIssueRequest true   "Issue payload"
// @Success     201                {object}  map[string]any
// @Failure     422                {object}  map[string]string
// @Failure     500                {object}  map[string]string
// @Router      /api/v1/newsletters [post]
func (h *NewsletterHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req domain.PublishIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	issue, enqueued, err := h.svc.Publish(r.Context(), req, idempotencyKey)
	if err != nil {
		h.logger.Warn("publish issue failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"issue":          issue,
		"tasks_enqueued": enqueued,
	})
}

// GetByID handles GET /api/v1/newsletters/{id}
//
// @Summary  Get a published issue by ID
// @Tags     newsletters
// @Produce  json
// @Param    id   path      string  true  "Issue UUID"
// @Success  200  {object}  domain.Issue
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/newsletters/{id} [get]
func (h *NewsletterHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	issue, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, issue)
}
