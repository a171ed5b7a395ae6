package handlers

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

type ChatAssistant interface {
	Chat(ctx context.Context, scope *database.Scope, user *models.User, message string) *models.ChatResponse
	Grounding(ctx context.Context) string
}

type AIHandler struct {
	svc ChatAssistant
}

func NewAIHandler(svc ChatAssistant) *AIHandler {
	return &AIHandler{svc: svc}
}

// Chat works for guests and signed-in users alike; model and logging
// failures are absorbed by the service.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	body := middleware.BodyFrom[models.ChatRequest](r.Context())
	resp := h.svc.Chat(r.Context(), middleware.ScopeFrom(r.Context()), middleware.UserFrom(r.Context()), body.Message)
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (h *AIHandler) Grounding(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, models.GroundingResponse{Exercise: h.svc.Grounding(r.Context())})
}
