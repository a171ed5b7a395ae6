package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/models"
)

const testRoomID = "0b9e4f6a-2c1d-4e8b-9a7f-3d5c6b7a8e90"

var roomColumns = []string{"id", "initiator_id", "responder_id", "status", "created_at", "closed_at"}

func TestCloseRoomFreesResponder(t *testing.T) {
	scopes, mock := newMockScopes(t)
	pub := &fakePublisher{}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM chat_rooms WHERE id = \$1 FOR UPDATE`).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows(roomColumns).AddRow(testRoomID, "caller", "peer", "active", now, nil))
	mock.ExpectQuery(`UPDATE chat_rooms SET status = 'closed'`).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows([]string{"closed_at"}).AddRow(now))
	mock.ExpectExec(`UPDATE profiles SET availability_status = 'available'`).
		WithArgs("peer").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	room, err := NewRoomService(scopes, pub, zap.NewNop()).Close(context.Background(), testRoomID, "caller")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.Status != models.RoomClosed || room.ClosedAt == nil {
		t.Fatalf("expected closed room, got %+v", room)
	}
	if len(pub.events) != 1 || pub.events[0].target != "room:"+testRoomID {
		t.Fatalf("expected room_closed event, got %+v", pub.events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCloseRoomRejects(t *testing.T) {
	testCases := []struct {
		name    string
		status  string
		userID  string
		wantErr error
	}{
		{name: "outsider", status: "active", userID: "stranger", wantErr: ErrNotFound},
		{name: "already closed", status: "closed", userID: "caller", wantErr: ErrConflict},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			scopes, mock := newMockScopes(t)
			mock.ExpectBegin()
			mock.ExpectQuery(`FROM chat_rooms`).
				WillReturnRows(sqlmock.NewRows(roomColumns).AddRow(testRoomID, "caller", "peer", tc.status, time.Now(), nil))
			mock.ExpectRollback()

			_, err := NewRoomService(scopes, nil, zap.NewNop()).Close(context.Background(), testRoomID, tc.userID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestGetRoom(t *testing.T) {
	scopes, mock := newMockScopes(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM chat_rooms WHERE id = \$1`).
		WithArgs(testRoomID).
		WillReturnRows(sqlmock.NewRows(roomColumns).AddRow(testRoomID, "caller", "peer", "active", time.Now(), nil))
	mock.ExpectCommit()

	room, err := NewRoomService(scopes, nil, zap.NewNop()).Get(context.Background(), testRoomID, "peer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.ID != testRoomID || room.Status != models.RoomActive {
		t.Fatalf("unexpected room %+v", room)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetRoomNotFound(t *testing.T) {
	t.Run("outsider", func(t *testing.T) {
		scopes, mock := newMockScopes(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM chat_rooms`).
			WillReturnRows(sqlmock.NewRows(roomColumns).AddRow(testRoomID, "caller", "peer", "active", time.Now(), nil))
		mock.ExpectCommit()

		if _, err := NewRoomService(scopes, nil, zap.NewNop()).Get(context.Background(), testRoomID, "stranger"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing row", func(t *testing.T) {
		scopes, mock := newMockScopes(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM chat_rooms`).WillReturnRows(sqlmock.NewRows(roomColumns))
		mock.ExpectRollback()

		if _, err := NewRoomService(scopes, nil, zap.NewNop()).Get(context.Background(), testRoomID, "caller"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMalformedRoomIDIsNotFound(t *testing.T) {
	// No expectations: a malformed id must never reach the database.
	scopes, mock := newMockScopes(t)
	svc := NewRoomService(scopes, nil, zap.NewNop())

	if _, err := svc.Get(context.Background(), "abc", "caller"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Close(context.Background(), "abc", "caller"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Close: expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}

var profileColumns = []string{"id", "username", "avatar_url", "bio", "is_peer", "availability_status", "updated_at"}

func TestSetAvailability(t *testing.T) {
	t.Run("non peer forbidden", func(t *testing.T) {
		scopes, mock := newMockScopes(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM profiles WHERE id = \$1 FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows(profileColumns).AddRow("u1", nil, nil, nil, false, "offline", time.Now()))
		mock.ExpectRollback()

		_, err := NewRoomService(scopes, nil, zap.NewNop()).SetAvailability(context.Background(), "u1", models.AvailabilityAvailable)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("peer in active room", func(t *testing.T) {
		scopes, mock := newMockScopes(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM profiles`).
			WillReturnRows(sqlmock.NewRows(profileColumns).AddRow("p1", nil, nil, nil, true, "busy", time.Now()))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := NewRoomService(scopes, nil, zap.NewNop()).SetAvailability(context.Background(), "p1", models.AvailabilityAvailable)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("peer goes available", func(t *testing.T) {
		scopes, mock := newMockScopes(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM profiles`).
			WillReturnRows(sqlmock.NewRows(profileColumns).AddRow("p1", nil, nil, nil, true, "offline", time.Now()))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`UPDATE profiles SET availability_status = \$2`).
			WithArgs("p1", "available").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		p, err := NewRoomService(scopes, nil, zap.NewNop()).SetAvailability(context.Background(), "p1", models.AvailabilityAvailable)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.AvailabilityStatus != models.AvailabilityAvailable {
			t.Fatalf("unexpected status %s", p.AvailabilityStatus)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}
