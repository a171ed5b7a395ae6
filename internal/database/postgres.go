package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ConnectPostgres opens the pool, pings it and bootstraps the schema.
func ConnectPostgres(ctx context.Context, uri string, log *zap.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("✅ Connected to PostgreSQL")

	if err := InitPostgresTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("✅ PostgreSQL tables initialized")
	return db, nil
}

// InitPostgresTables creates tables, indexes and row-level security policies
// if they don't exist. Safe to run on every start.
func InitPostgresTables(ctx context.Context, db *sqlx.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	// Self-hosted auth accounts (unused when a hosted auth provider issues tokens)
	`CREATE TABLE IF NOT EXISTS auth_users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		user_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		username VARCHAR(50),
		avatar_url TEXT,
		bio TEXT,
		is_peer BOOLEAN NOT NULL DEFAULT FALSE,
		availability_status VARCHAR(20) NOT NULL DEFAULT 'offline'
			CHECK (availability_status IN ('available', 'busy', 'offline')),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS mood_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		mood_score INTEGER NOT NULL CHECK (mood_score BETWEEN 1 AND 10),
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS emergency_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL,
		description TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'resolved', 'cancelled')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS chat_rooms (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		initiator_id UUID NOT NULL,
		responder_id UUID NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'closed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		closed_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS chat_logs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID,
		sender VARCHAR(10) NOT NULL CHECK (sender IN ('user', 'ai')),
		message TEXT NOT NULL,
		sentiment JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_mood_logs_user_created ON mood_logs(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_requests_user_id ON emergency_requests(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emergency_requests_status ON emergency_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_profiles_peer_available ON profiles(availability_status, updated_at) WHERE is_peer`,
	`CREATE INDEX IF NOT EXISTS idx_chat_rooms_responder ON chat_rooms(responder_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_chat_logs_user_created ON chat_logs(user_id, created_at)`,

	// Row-level security keyed on the same claim Supabase exposes as auth.uid().
	// FORCE applies the policies to the table owner too, which is the role
	// that ran this bootstrap.
	`ALTER TABLE mood_logs ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE mood_logs FORCE ROW LEVEL SECURITY`,
	`ALTER TABLE chat_logs ENABLE ROW LEVEL SECURITY`,
	`ALTER TABLE chat_logs FORCE ROW LEVEL SECURITY`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_policies WHERE tablename = 'mood_logs' AND policyname = 'mood_logs_owner') THEN
			CREATE POLICY mood_logs_owner ON mood_logs
				USING (user_id::text = current_setting('request.jwt.claim.sub', true))
				WITH CHECK (user_id::text = current_setting('request.jwt.claim.sub', true));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_policies WHERE tablename = 'chat_logs' AND policyname = 'chat_logs_insert') THEN
			CREATE POLICY chat_logs_insert ON chat_logs FOR INSERT
				WITH CHECK (user_id IS NULL OR user_id::text = current_setting('request.jwt.claim.sub', true));
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_policies WHERE tablename = 'chat_logs' AND policyname = 'chat_logs_owner_read') THEN
			CREATE POLICY chat_logs_owner_read ON chat_logs FOR SELECT
				USING (user_id::text = current_setting('request.jwt.claim.sub', true));
		END IF;
	END
	$$`,
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres(db *sqlx.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
