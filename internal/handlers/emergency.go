package handlers

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

// EmergencyTooManyMessage is returned with 429 once a caller exhausts the
// trigger window.
const EmergencyTooManyMessage = "Too many emergency requests. Please try again later or contact support directly."

type EmergencyTrigger interface {
	Trigger(ctx context.Context, callerID, description string) (*models.TriggerResult, error)
}

type EmergencyHandler struct {
	svc EmergencyTrigger
}

func NewEmergencyHandler(svc EmergencyTrigger) *EmergencyHandler {
	return &EmergencyHandler{svc: svc}
}

// Trigger expects auth, the emergency rate limit and
// ValidateBody[models.TriggerRequest] in front of it.
func (h *EmergencyHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	body := middleware.BodyFrom[models.TriggerRequest](r.Context())

	res, err := h.svc.Trigger(r.Context(), user.ID, body.Description)
	if err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to process emergency request", err))
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, res)
}
