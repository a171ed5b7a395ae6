package services

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func newMockScopes(t *testing.T) (*database.Scopes, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return database.NewScopes(db, ""), mock
}

func expectUserScope(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config`).WithArgs(userID).WillReturnResult(sqlmock.NewResult(0, 0))
}

type published struct {
	target string
	ev     models.RealtimeEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) PublishUser(_ context.Context, userID string, ev models.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{target: "user:" + userID, ev: ev})
	return nil
}

func (f *fakePublisher) PublishRoom(_ context.Context, roomID string, ev models.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{target: "room:" + roomID, ev: ev})
	return nil
}
