package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
	"github.com/AnshRaj112/safezone-backend/internal/services"
)

type Rooms interface {
	Get(ctx context.Context, roomID, userID string) (*models.ChatRoom, error)
	Close(ctx context.Context, roomID, userID string) (*models.ChatRoom, error)
	SetAvailability(ctx context.Context, userID string, status models.AvailabilityStatus) (*models.Profile, error)
}

type RoomHandler struct {
	rooms Rooms
}

func NewRoomHandler(rooms Rooms) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) Close(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	room, err := h.rooms.Close(r.Context(), chi.URLParam(r, "roomID"), user.ID)
	switch {
	case errors.Is(err, services.ErrNotFound):
		middleware.WriteError(w, r, apperror.NotFound("Room not found"))
	case errors.Is(err, services.ErrConflict):
		middleware.WriteError(w, r, apperror.Conflict("Room is already closed"))
	case err != nil:
		middleware.WriteError(w, r, apperror.Provider("Failed to close room", err))
	default:
		middleware.WriteJSON(w, http.StatusOK, room)
	}
}

// SetAvailability expects ValidateBody[models.AvailabilityRequest].
func (h *RoomHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r.Context())
	body := middleware.BodyFrom[models.AvailabilityRequest](r.Context())

	profile, err := h.rooms.SetAvailability(r.Context(), user.ID, models.AvailabilityStatus(body.Status))
	switch {
	case errors.Is(err, services.ErrForbidden):
		middleware.WriteError(w, r, apperror.Forbidden("Only peer supporters can change availability"))
	case errors.Is(err, services.ErrConflict):
		middleware.WriteError(w, r, apperror.Conflict("Close your active room before going available"))
	case err != nil:
		middleware.WriteError(w, r, apperror.Provider("Failed to update availability", err))
	default:
		middleware.WriteJSON(w, http.StatusOK, profile)
	}
}
