package handlers

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

type MoodStore interface {
	Create(ctx context.Context, scope *database.Scope, score int, notes *string) (*models.MoodLog, error)
	History(ctx context.Context, scope *database.Scope) ([]models.MoodLog, error)
}

type MoodHandler struct {
	store MoodStore
}

func NewMoodHandler(store MoodStore) *MoodHandler {
	return &MoodHandler{store: store}
}

// Create logs one mood entry for the caller. Expects ValidateBody[models.MoodRequest].
func (h *MoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	body := middleware.BodyFrom[models.MoodRequest](r.Context())

	// An empty note is stored as no note.
	notes := body.Notes
	if notes != nil && *notes == "" {
		notes = nil
	}

	row, err := h.store.Create(r.Context(), middleware.ScopeFrom(r.Context()), *body.MoodScore, notes)
	if err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to log mood", err))
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, row)
}

// History returns the caller's entries oldest first.
func (h *MoodHandler) History(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.History(r.Context(), middleware.ScopeFrom(r.Context()))
	if err != nil {
		middleware.WriteError(w, r, apperror.Provider("Failed to fetch mood history", err))
		return
	}
	if rows == nil {
		rows = []models.MoodLog{}
	}
	middleware.WriteJSON(w, http.StatusOK, rows)
}
