package models

import (
	"strings"
	"time"
)

// User is the identity resolved from a bearer token.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// DisplayName picks the name the AI persona addresses the user by:
// user_metadata.full_name, then the email local part, then "friend".
func (u *User) DisplayName() string {
	if u == nil {
		return "friend"
	}
	if name, ok := u.UserMetadata["full_name"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if local, _, ok := strings.Cut(u.Email, "@"); ok && local != "" {
		return local
	}
	return "friend"
}

// AuthUser is a self-hosted account row. Password hash never leaves the store.
type AuthUser struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	UserMetadata JSONMap   `db:"user_metadata" json:"user_metadata"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (a *AuthUser) Identity() *User {
	return &User{ID: a.ID, Email: a.Email, UserMetadata: a.UserMetadata}
}

type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBusy      AvailabilityStatus = "busy"
	AvailabilityOffline   AvailabilityStatus = "offline"
)

type Profile struct {
	ID                 string             `db:"id" json:"id"`
	Username           *string            `db:"username" json:"username"`
	AvatarURL          *string            `db:"avatar_url" json:"avatar_url"`
	Bio                *string            `db:"bio" json:"bio"`
	IsPeer             bool               `db:"is_peer" json:"is_peer"`
	AvailabilityStatus AvailabilityStatus `db:"availability_status" json:"availability_status"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"omitempty,max=100"`
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type AvailabilityRequest struct {
	Status string `json:"status" validate:"required,oneof=available offline"`
}
