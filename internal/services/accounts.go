package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AnshRaj112/safezone-backend/internal/models"
	"github.com/AnshRaj112/safezone-backend/pkg/utils"
)

// TokenIssuer signs access tokens for self-hosted accounts.
type TokenIssuer interface {
	Issue(u *models.User) (string, time.Duration, error)
}

// AccountService implements email/password accounts for deployments that
// don't use a hosted auth server.
type AccountService struct {
	db     *sqlx.DB
	issuer TokenIssuer
}

func NewAccountService(db *sqlx.DB, issuer TokenIssuer) *AccountService {
	return &AccountService{db: db, issuer: issuer}
}

// Signup creates the account and its profile in one transaction.
func (s *AccountService) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	meta := models.JSONMap{}
	if name := strings.TrimSpace(req.FullName); name != "" {
		meta["full_name"] = name
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var account models.AuthUser
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO auth_users (email, password_hash, user_metadata)
		 VALUES ($1, $2, $3)
		 RETURNING id, email, password_hash, user_metadata, created_at`,
		strings.ToLower(strings.TrimSpace(req.Email)), hash, meta,
	).StructScan(&account)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO profiles (id, availability_status, updated_at) VALUES ($1, 'offline', NOW())`,
		account.ID,
	); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.respond(account.Identity())
}

// Signin checks the password and returns a fresh token.
func (s *AccountService) Signin(ctx context.Context, req models.SigninRequest) (*models.AuthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var account models.AuthUser
	err := s.db.GetContext(ctx, &account,
		`SELECT id, email, password_hash, user_metadata, created_at FROM auth_users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(req.Email)),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	ok, err := utils.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return s.respond(account.Identity())
}

func (s *AccountService) respond(u *models.User) (*models.AuthResponse, error) {
	token, ttl, err := s.issuer.Issue(u)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.AuthResponse{
		User:        u,
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}
