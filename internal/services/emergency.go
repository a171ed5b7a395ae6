package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

const triggerMessage = "Emergency request triggered successfully"

// Publisher delivers realtime events to users and rooms.
type Publisher interface {
	PublishUser(ctx context.Context, userID string, ev models.RealtimeEvent) error
	PublishRoom(ctx context.Context, roomID string, ev models.RealtimeEvent) error
}

// EmergencyService records emergency requests and pairs the caller with an
// available peer.
type EmergencyService struct {
	scopes *database.Scopes
	pub    Publisher
	log    *zap.Logger
}

func NewEmergencyService(scopes *database.Scopes, pub Publisher, log *zap.Logger) *EmergencyService {
	return &EmergencyService{scopes: scopes, pub: pub, log: log}
}

// claimPeerQuery marks one available peer busy and returns its id. SKIP
// LOCKED keeps concurrent triggers from claiming the same row.
const claimPeerQuery = `
UPDATE profiles SET availability_status = 'busy', updated_at = NOW()
WHERE id = (
	SELECT id FROM profiles
	WHERE is_peer AND availability_status = 'available' AND id <> $1
	ORDER BY updated_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id`

// Trigger stores the request and, when a peer is free, opens a room. All
// writes commit together or not at all.
func (s *EmergencyService) Trigger(ctx context.Context, callerID, description string) (*models.TriggerResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := &models.TriggerResult{Message: triggerMessage}

	err := s.scopes.Privileged().Run(ctx, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx,
			`INSERT INTO emergency_requests (user_id, description, status)
			 VALUES ($1, $2, 'pending') RETURNING id`,
			callerID, description,
		).Scan(&result.EmergencyRequestID); err != nil {
			return fmt.Errorf("insert request: %w", err)
		}

		var peerID string
		err := tx.QueryRowxContext(ctx, claimPeerQuery, callerID).Scan(&peerID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim peer: %w", err)
		}

		var roomID string
		if err := tx.QueryRowxContext(ctx,
			`INSERT INTO chat_rooms (initiator_id, responder_id, status)
			 VALUES ($1, $2, 'active') RETURNING id`,
			callerID, peerID,
		).Scan(&roomID); err != nil {
			return fmt.Errorf("insert room: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE emergency_requests SET status = 'resolved' WHERE id = $1`,
			result.EmergencyRequestID,
		); err != nil {
			return fmt.Errorf("resolve request: %w", err)
		}

		result.RoomID = &roomID
		result.Matched = true
		result.ResponderID = peerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.AnonymousID = models.AnonymousID(result.EmergencyRequestID)

	if result.Matched && s.pub != nil {
		ev := models.RealtimeEvent{
			Type:      models.EventEmergencyMatch,
			RoomID:    *result.RoomID,
			Data:      map[string]any{"anonymous_id": result.AnonymousID, "emergency_request_id": result.EmergencyRequestID},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.pub.PublishUser(ctx, result.ResponderID, ev); err != nil {
			s.log.Warn("emergency match notification failed", zap.String("room_id", *result.RoomID), zap.Error(err))
		}
	}
	return result, nil
}
