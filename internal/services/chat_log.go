package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

// PostgresChatLogs writes chat logs through the caller's scope, so guests and
// users are both checked by the table's insert policy.
type PostgresChatLogs struct{}

func NewPostgresChatLogs() *PostgresChatLogs {
	return &PostgresChatLogs{}
}

func (p *PostgresChatLogs) Append(ctx context.Context, scope *database.Scope, logs []models.ChatLog) error {
	if scope == nil {
		return errors.New("chat log: scope required")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scope.Run(ctx, func(tx *sqlx.Tx) error {
		for _, l := range logs {
			var sentiment models.JSONMap
			if l.Sentiment != nil {
				sentiment = l.Sentiment
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chat_logs (user_id, sender, message, sentiment, created_at) VALUES ($1, $2, $3, $4, $5)`,
				l.UserID, string(l.Sender), l.Message, sentiment, l.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert chat log: %w", err)
			}
		}
		return nil
	})
}

// MongoChatLogs stores chat logs as documents in the chat_logs collection.
type MongoChatLogs struct {
	coll *mongo.Collection
}

func NewMongoChatLogs(db *mongo.Database) *MongoChatLogs {
	return &MongoChatLogs{coll: db.Collection(database.ChatLogsCollection)}
}

func (m *MongoChatLogs) Append(ctx context.Context, _ *database.Scope, logs []models.ChatLog) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	docs := make([]any, 0, len(logs))
	for _, l := range logs {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		docs = append(docs, l)
	}
	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert chat logs: %w", err)
	}
	return nil
}
