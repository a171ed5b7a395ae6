package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	mongoDatabase      = "safezone"
	ChatLogsCollection = "chat_logs"
)

// ConnectMongo connects to MongoDB and returns the safezone database. Only
// used when chat logs are routed to Mongo.
func ConnectMongo(ctx context.Context, uri string, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	log.Info("✅ Connected to MongoDB")

	db := client.Database(mongoDatabase)
	if err := EnsureChatLogIndexes(connectCtx, db); err != nil {
		log.Warn("could not create chat log indexes", zap.Error(err))
	}
	return client, db, nil
}

// EnsureChatLogIndexes creates the per-user history index on chat_logs.
func EnsureChatLogIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(ChatLogsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("user_created"),
	})
	return err
}

// DisconnectMongo closes the MongoDB connection
func DisconnectMongo(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}
