package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

// MoodService stores mood logs through the caller's scope so row-level
// security applies to every statement.
type MoodService struct{}

func NewMoodService() *MoodService {
	return &MoodService{}
}

func (s *MoodService) Create(ctx context.Context, scope *database.Scope, score int, notes *string) (*models.MoodLog, error) {
	if scope == nil || scope.UserID() == "" {
		return nil, errors.New("mood: user scope required")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var row models.MoodLog
	err := scope.Run(ctx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx,
			`INSERT INTO mood_logs (user_id, mood_score, notes)
			 VALUES ($1, $2, $3)
			 RETURNING id, user_id, mood_score, notes, created_at`,
			scope.UserID(), score, notes,
		).StructScan(&row)
	})
	if err != nil {
		return nil, fmt.Errorf("insert mood log: %w", err)
	}
	return &row, nil
}

// History returns every entry for the caller, oldest first.
func (s *MoodService) History(ctx context.Context, scope *database.Scope) ([]models.MoodLog, error) {
	if scope == nil || scope.UserID() == "" {
		return nil, errors.New("mood: user scope required")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows := []models.MoodLog{}
	err := scope.Run(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &rows,
			`SELECT id, user_id, mood_score, notes, created_at
			 FROM mood_logs
			 WHERE user_id = $1
			 ORDER BY created_at ASC, id ASC`,
			scope.UserID(),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("select mood history: %w", err)
	}
	return rows, nil
}
