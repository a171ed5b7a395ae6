package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AnshRaj112/safezone-backend/internal/database"
)

type ProfileService struct {
	scopes *database.Scopes
}

func NewProfileService(scopes *database.Scopes) *ProfileService {
	return &ProfileService{scopes: scopes}
}

// SetAvatar stores the uploaded avatar URL, creating the profile row for
// users whose account lives in a hosted auth server.
func (s *ProfileService) SetAvatar(ctx context.Context, userID, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.scopes.Privileged().Run(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, avatar_url, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (id) DO UPDATE SET avatar_url = EXCLUDED.avatar_url, updated_at = NOW()`,
			userID, url)
		return err
	})
	if err != nil {
		return fmt.Errorf("set avatar: %w", err)
	}
	return nil
}
