package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthProvider resolves a bearer token to a user.
type AuthProvider interface {
	GetUser(ctx context.Context, token string) (*models.User, error)
}

// Claims mirror the Supabase access token payload.
type Claims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider verifies and issues HS256 tokens with a shared secret.
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTProvider(secret string, ttl time.Duration) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (p *JWTProvider) GetUser(_ context.Context, token string) (*models.User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	// User ids are uuid columns everywhere downstream.
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return &models.User{ID: claims.Subject, Email: claims.Email, UserMetadata: claims.UserMetadata}, nil
}

// Issue signs an access token for u. The second return is the lifetime.
func (p *JWTProvider) Issue(u *models.User) (string, time.Duration, error) {
	now := p.now()
	claims := Claims{
		Email:        u.Email,
		Role:         "authenticated",
		UserMetadata: u.UserMetadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", 0, err
	}
	return signed, p.ttl, nil
}

// GoTrueProvider asks a Supabase Auth (GoTrue) server who owns a token and
// caches the answer.
type GoTrueProvider struct {
	baseURL string
	anonKey string
	client  *http.Client
	cache   *CacheService
	ttl     time.Duration
	log     *zap.Logger
}

func NewGoTrueProvider(baseURL, anonKey string, cache *CacheService, ttl time.Duration, log *zap.Logger) *GoTrueProvider {
	return &GoTrueProvider{
		baseURL: baseURL,
		anonKey: anonKey,
		client:  &http.Client{Timeout: 5 * time.Second},
		cache:   cache,
		ttl:     ttl,
		log:     log,
	}
}

func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return CacheKey("auth", hex.EncodeToString(sum[:]))
}

func (p *GoTrueProvider) GetUser(ctx context.Context, token string) (*models.User, error) {
	key := tokenCacheKey(token)

	var cached models.User
	if hit, err := p.cache.Get(ctx, key, &cached); err != nil {
		p.log.Warn("auth cache read failed", zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", p.anonKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("auth provider: unexpected status %d", resp.StatusCode)
	}

	var user models.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth provider: decode user: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}

	if err := p.cache.SetWithTTL(ctx, key, &user, p.cacheTTL(token)); err != nil {
		p.log.Warn("auth cache write failed", zap.Error(err))
	}
	return &user, nil
}

// cacheTTL never outlives the token itself.
func (p *GoTrueProvider) cacheTTL(token string) time.Duration {
	ttl := p.ttl
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left < ttl {
			ttl = left
		}
	}
	return ttl
}
