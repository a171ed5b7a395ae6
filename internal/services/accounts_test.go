package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/AnshRaj112/safezone-backend/internal/models"
	"github.com/AnshRaj112/safezone-backend/pkg/utils"
)

var accountColumns = []string{"id", "email", "password_hash", "user_metadata", "created_at"}

func TestSignupCreatesAccountAndProfile(t *testing.T) {
	db, mock := newMockDB(t)
	issuer := NewJWTProvider("secret", time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO auth_users`).
		WithArgs("ada@example.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow(testUserID, "ada@example.com", "hash", []byte(`{"full_name":"Ada"}`), time.Now()))
	mock.ExpectExec(`INSERT INTO profiles`).WithArgs(testUserID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp, err := NewAccountService(db, issuer).Signup(context.Background(), models.SignupRequest{
		Email: " Ada@Example.com ", Password: "longenough", FullName: "Ada",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.User.ID != testUserID || resp.TokenType != "bearer" || resp.ExpiresIn != 3600 {
		t.Fatalf("unexpected response %+v", resp)
	}

	user, err := issuer.GetUser(context.Background(), resp.AccessToken)
	if err != nil || user.ID != testUserID || user.DisplayName() != "Ada" {
		t.Fatalf("issued token did not round-trip: %+v %v", user, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO auth_users`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := NewAccountService(db, NewJWTProvider("secret", time.Hour)).Signup(context.Background(), models.SignupRequest{
		Email: "ada@example.com", Password: "longenough",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSignin(t *testing.T) {
	hash, err := utils.HashPassword("longenough")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	testCases := []struct {
		name     string
		password string
		rows     *sqlmock.Rows
		wantErr  error
	}{
		{name: "ok", password: "longenough", rows: sqlmock.NewRows(accountColumns).AddRow("u1", "ada@example.com", hash, []byte(`{}`), time.Now())},
		{name: "wrong password", password: "nope", rows: sqlmock.NewRows(accountColumns).AddRow("u1", "ada@example.com", hash, []byte(`{}`), time.Now()), wantErr: ErrInvalidCredentials},
		{name: "unknown email", password: "longenough", rows: sqlmock.NewRows(accountColumns), wantErr: ErrInvalidCredentials},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectQuery(`FROM auth_users WHERE email = \$1`).WithArgs("ada@example.com").WillReturnRows(tc.rows)

			resp, err := NewAccountService(db, NewJWTProvider("secret", time.Hour)).Signin(context.Background(), models.SigninRequest{
				Email: "ada@example.com", Password: tc.password,
			})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || resp.AccessToken == "" {
				t.Fatalf("unexpected result %+v %v", resp, err)
			}
		})
	}
}
