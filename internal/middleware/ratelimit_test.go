package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(3, 15*time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, _ := l.Allow(ctx, "k")
		if !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("hit %d: unexpected decision %+v", i, d)
		}
		now = now.Add(time.Minute)
	}

	d, _ := l.Allow(ctx, "k")
	if d.Allowed {
		t.Fatalf("expected 4th hit to be rejected")
	}
	if d.ResetAfter != 12*time.Minute {
		t.Fatalf("expected reset when the first hit expires, got %s", d.ResetAfter)
	}

	if d, _ := l.Allow(ctx, "other"); !d.Allowed {
		t.Fatalf("keys must be independent")
	}

	// First hit (t=0) leaves the window at t=15m; rejected hits were not recorded.
	now = time.Date(2024, 1, 1, 12, 15, 0, 1, time.UTC)
	if d, _ := l.Allow(ctx, "k"); !d.Allowed {
		t.Fatalf("expected a slot once the oldest hit expired")
	}
	if d, _ := l.Allow(ctx, "k"); d.Allowed {
		t.Fatalf("window is full again")
	}
}

func TestMemoryLimiterCleanup(t *testing.T) {
	now := time.Now()
	l := NewMemoryLimiter(1, time.Minute)
	l.now = func() time.Time { return now }
	_, _ = l.Allow(context.Background(), "k")

	now = now.Add(2 * time.Minute)
	l.Cleanup()
	if len(l.hits) != 0 {
		t.Fatalf("expected idle key to be removed")
	}
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, 3, 15*time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "emergency:user:u1")
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d: unexpected decision %+v err=%v", i, d, err)
		}
	}
	d, err := l.Allow(ctx, "emergency:user:u1")
	if err != nil || d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected rejection, got %+v err=%v", d, err)
	}
	if d.ResetAfter <= 0 || d.ResetAfter > 15*time.Minute {
		t.Fatalf("unexpected reset %s", d.ResetAfter)
	}
	if n, _ := client.ZCard(ctx, RateLimitKeyPrefix+"emergency:user:u1").Result(); n != 3 {
		t.Fatalf("expected rejected hit not to be stored, got %d entries", n)
	}
}

func TestRedisLimiterFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	l := NewRedisLimiter(client, 1, time.Minute, zap.NewNop())
	if d, _ := l.Allow(context.Background(), "k"); !d.Allowed {
		t.Fatalf("expected memory fallback to allow first hit")
	}
	if d, _ := l.Allow(context.Background(), "k"); d.Allowed {
		t.Fatalf("expected memory fallback to enforce the limit")
	}
}

func TestRateLimitMiddlewareRejectsFourthTrigger(t *testing.T) {
	const msg = "Too many emergency requests. Please try again later or contact support directly."
	calls := 0
	h := newTestAuth().Require(
		RateLimit(NewMemoryLimiter(3, 15*time.Minute), "emergency", UserOrIPKey(false), msg)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusCreated)
			}),
		),
	)

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
		req.Header.Set("Authorization", "Bearer good")
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		if i < 3 && last.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, last.Code)
		}
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if calls != 3 {
		t.Fatalf("handler must not run for the rejected request, ran %d times", calls)
	}
	var body map[string]any
	_ = json.Unmarshal(last.Body.Bytes(), &body)
	if body["error"] != msg {
		t.Fatalf("unexpected body %v", body)
	}
	if last.Header().Get("Retry-After") == "" || last.Header().Get("RateLimit-Remaining") != "0" || last.Header().Get("RateLimit-Limit") != "3" {
		t.Fatalf("missing rate limit headers: %v", last.Header())
	}
}
