package models

import "time"

// MoodLog is append-only; rows are never updated or deleted.
type MoodLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	MoodScore int       `db:"mood_score" json:"mood_score"`
	Notes     *string   `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type MoodRequest struct {
	MoodScore *int    `json:"mood_score" validate:"required,min=1,max=10"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}
