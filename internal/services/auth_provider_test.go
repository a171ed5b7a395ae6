package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/models"
)

const testUserID = "6f1c2a4e-9b7d-4c3a-8e21-5d0f7b9a1c33"

func TestJWTProviderRoundTrip(t *testing.T) {
	p := NewJWTProvider("secret", time.Hour)
	token, ttl, err := p.Issue(&models.User{ID: testUserID, Email: "a@b.c", UserMetadata: map[string]any{"full_name": "Ana"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl != time.Hour {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	user, err := p.GetUser(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != testUserID || user.Email != "a@b.c" || user.DisplayName() != "Ana" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestJWTProviderRejects(t *testing.T) {
	p := NewJWTProvider("secret", time.Hour)
	good, _, _ := p.Issue(&models.User{ID: testUserID})

	other, _, _ := NewJWTProvider("other", time.Hour).Issue(&models.User{ID: testUserID})

	expiredIssuer := NewJWTProvider("secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := expiredIssuer.Issue(&models.User{ID: testUserID})

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: testUserID},
	}).SignedString([]byte("secret"))

	notUUID, _, _ := p.Issue(&models.User{ID: "u1"})

	testCases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": other,
		"expired":      expired,
		"no subject":   noSub,
		"no expiry":    noExp,
		"non-uuid sub": notUUID,
		"tampered":     good + "x",
	}
	for name, token := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := p.GetUser(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestGoTrueProviderCachesLookups(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","email":"sam@example.com","user_metadata":{}}`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewGoTrueProvider(srv.URL, "anon", NewCacheService(client), time.Minute, zap.NewNop())

	for i := 0; i < 2; i++ {
		user, err := p.GetUser(context.Background(), "good")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != "u1" || user.DisplayName() != "sam" {
			t.Fatalf("unexpected user %+v", user)
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", hits.Load())
	}

	if _, err := p.GetUser(context.Background(), "bad"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGoTrueProviderWithoutRedis(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewGoTrueProvider(srv.URL, "anon", NewCacheService(nil), time.Minute, zap.NewNop())
	_, err := p.GetUser(context.Background(), "good")
	if err == nil || errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
