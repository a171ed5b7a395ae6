package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/internal/database"
	"github.com/AnshRaj112/safezone-backend/internal/models"
	"github.com/AnshRaj112/safezone-backend/internal/services"
)

type userKey struct{}
type scopeKey struct{}

// UserFrom returns the authenticated user, or nil for guests.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// ScopeFrom returns the database scope bound to the request.
func ScopeFrom(ctx context.Context) *database.Scope {
	s, _ := ctx.Value(scopeKey{}).(*database.Scope)
	return s
}

// WithIdentity attaches a user and scope to ctx.
func WithIdentity(ctx context.Context, user *models.User, scope *database.Scope) context.Context {
	ctx = context.WithValue(ctx, userKey{}, user)
	return context.WithValue(ctx, scopeKey{}, scope)
}

var (
	errMissingHeader = apperror.Unauthorized("Missing or invalid authorization header")
	errNoToken       = apperror.Unauthorized("Token not provided")
	errInvalidToken  = apperror.Unauthorized("Unauthorized: Invalid token")
)

// bearerToken takes the second space-separated field, so "Bearer  x" yields
// an empty token.
func bearerToken(header string) (string, *apperror.Error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errMissingHeader
	}
	parts := strings.Split(header, " ")
	if len(parts) < 2 || parts[1] == "" {
		return "", errNoToken
	}
	return parts[1], nil
}

// Auth resolves bearer tokens and binds database scopes.
type Auth struct {
	provider services.AuthProvider
	scopes   *database.Scopes
}

func NewAuth(provider services.AuthProvider, scopes *database.Scopes) *Auth {
	return &Auth{provider: provider, scopes: scopes}
}

func (a *Auth) scopeFor(userID string) *database.Scope {
	if a.scopes == nil {
		return nil
	}
	return a.scopes.ForUser(userID)
}

func (a *Auth) resolve(r *http.Request, token string) (*models.User, error) {
	user, err := a.provider.GetUser(r.Context(), token)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidToken) {
			LoggerFrom(r.Context()).Warn("auth provider lookup failed", zap.Error(err))
		}
		return nil, err
	}
	return user, nil
}

// Require rejects requests without a valid bearer token with 401.
func (a *Auth) Require(next http.Handler) http.Handler {
	return a.require(next, false)
}

// RequireWS is Require that also accepts ?token= for browser WebSocket
// clients, which cannot set headers.
func (a *Auth) RequireWS(next http.Handler) http.Handler {
	return a.require(next, true)
}

func (a *Auth) require(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && allowQuery {
			if q := r.URL.Query().Get("token"); q != "" {
				header = "Bearer " + q
			}
		}
		token, appErr := bearerToken(header)
		if appErr != nil {
			WriteError(w, r, appErr)
			return
		}

		user, err := a.resolve(r, token)
		if err != nil {
			WriteError(w, r, errInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user, a.scopeFor(user.ID))))
	})
}

// Optional resolves the token when present. Missing or invalid tokens make
// the request anonymous instead of failing it.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *models.User
		if token, appErr := bearerToken(r.Header.Get("Authorization")); appErr == nil {
			user, _ = a.resolve(r, token)
		}
		userID := ""
		if user != nil {
			userID = user.ID
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user, a.scopeFor(userID))))
	})
}
