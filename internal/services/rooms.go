package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

// RoomService manages peer rooms and peer availability.
type RoomService struct {
	scopes *database.Scopes
	pub    Publisher
	log    *zap.Logger
}

func NewRoomService(scopes *database.Scopes, pub Publisher, log *zap.Logger) *RoomService {
	return &RoomService{scopes: scopes, pub: pub, log: log}
}

// Get returns the room when userID takes part in it.
func (s *RoomService) Get(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var room models.ChatRoom
	err := s.scopes.Privileged().Run(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &room,
			`SELECT id, initiator_id, responder_id, status, created_at, closed_at
			 FROM chat_rooms WHERE id = $1`, roomID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if !room.HasParticipant(userID) {
		return nil, ErrNotFound
	}
	return &room, nil
}

// Close ends an active room and hands the responder back to the pool.
func (s *RoomService) Close(ctx context.Context, roomID, userID string) (*models.ChatRoom, error) {
	if _, err := uuid.Parse(roomID); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var room models.ChatRoom
	err := s.scopes.Privileged().Run(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &room,
			`SELECT id, initiator_id, responder_id, status, created_at, closed_at
			 FROM chat_rooms WHERE id = $1 FOR UPDATE`, roomID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !room.HasParticipant(userID) {
			return ErrNotFound
		}
		if room.Status != models.RoomActive {
			return ErrConflict
		}

		var closedAt time.Time
		if err := tx.GetContext(ctx, &closedAt,
			`UPDATE chat_rooms SET status = 'closed', closed_at = NOW() WHERE id = $1 RETURNING closed_at`,
			roomID); err != nil {
			return err
		}
		room.Status = models.RoomClosed
		room.ClosedAt = &closedAt

		_, err := tx.ExecContext(ctx,
			`UPDATE profiles SET availability_status = 'available', updated_at = NOW()
			 WHERE id = $1 AND availability_status = 'busy'`, room.ResponderID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("close room: %w", err)
	}

	if s.pub != nil {
		ev := models.RealtimeEvent{Type: models.EventRoomClosed, RoomID: roomID, SenderID: userID, CreatedAt: time.Now().UTC()}
		if err := s.pub.PublishRoom(ctx, roomID, ev); err != nil {
			s.log.Warn("room closed notification failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	return &room, nil
}

// SetAvailability lets a peer go available or offline. A peer with an active
// room cannot go available until the room is closed.
func (s *RoomService) SetAvailability(ctx context.Context, userID string, status models.AvailabilityStatus) (*models.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var profile models.Profile
	err := s.scopes.Privileged().Run(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &profile,
			`SELECT id, username, avatar_url, bio, is_peer, availability_status, updated_at
			 FROM profiles WHERE id = $1 FOR UPDATE`, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrForbidden
			}
			return err
		}
		if !profile.IsPeer {
			return ErrForbidden
		}

		if status == models.AvailabilityAvailable {
			var active bool
			if err := tx.GetContext(ctx, &active,
				`SELECT EXISTS (SELECT 1 FROM chat_rooms WHERE responder_id = $1 AND status = 'active')`,
				userID); err != nil {
				return err
			}
			if active {
				return ErrConflict
			}
		}

		return tx.GetContext(ctx, &profile.UpdatedAt,
			`UPDATE profiles SET availability_status = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			userID, string(status))
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("set availability: %w", err)
	}
	profile.AvailabilityStatus = status
	return &profile, nil
}
