package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/middleware"
	"github.com/AnshRaj112/safezone-backend/internal/models"
	"github.com/AnshRaj112/safezone-backend/internal/services"
)

type Accounts interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
	Signin(ctx context.Context, req models.SigninRequest) (*models.AuthResponse, error)
}

type AuthHandler struct {
	accounts Accounts
}

func NewAuthHandler(accounts Accounts) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	body := middleware.BodyFrom[models.SignupRequest](r.Context())
	resp, err := h.accounts.Signup(r.Context(), *body)
	switch {
	case errors.Is(err, services.ErrConflict):
		middleware.WriteError(w, r, apperror.Conflict("An account with this email already exists"))
	case err != nil:
		middleware.WriteError(w, r, apperror.Provider("Failed to create account", err))
	default:
		middleware.WriteJSON(w, http.StatusCreated, resp)
	}
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	body := middleware.BodyFrom[models.SigninRequest](r.Context())
	resp, err := h.accounts.Signin(r.Context(), *body)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		middleware.WriteError(w, r, apperror.Unauthorized("Invalid email or password"))
	case err != nil:
		middleware.WriteError(w, r, apperror.Provider("Failed to sign in", err))
	default:
		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}

// Me returns the identity behind the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"user": middleware.UserFrom(r.Context())})
}
