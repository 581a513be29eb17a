package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/inkwell/courier/internal/service"
)

// SubscriptionHandler handles the subscribe / confirm endpoints.
type SubscriptionHandler struct {
	svc    *service.SubscriptionService
	logger *zap.Logger
}

func NewSubscriptionHandler(svc *service.SubscriptionService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, logger: logger}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe handles POST /subscriptions
//
// @Summary  Request a subscription; a confirmation link is emailed
// @Tags     subscriptions
// @Accept   json
// @Param    body  body  subscribeRequest  true  "Subscriber email"
// @Success  202
// @Failure  409  {object}  map[string]string
// @Failure  422  {object}  map[string]string
// @Router   /subscriptions [post]
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.svc.Subscribe(r.Context(), req.Email); err != nil {
		h.logger.Warn("subscribe failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "confirmation email sent",
	})
}

// Confirm handles GET /subscriptions/confirm?token=...
//
// @Summary  Confirm a subscription via emailed token
// @Tags     subscriptions
// @Param    token  query  string  true  "Confirmation token"
// @Success  200
// @Failure  404  {object}  map[string]string
// @Router   /subscriptions/confirm [get]
func (h *SubscriptionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	email, err := h.svc.Confirm(r.Context(), token)
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"email":  email,
		"status": "confirmed",
	})
}
