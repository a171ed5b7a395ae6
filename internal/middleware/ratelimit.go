package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/safezone-backend/internal/apperror"
	"github.com/AnshRaj112/safezone-backend/pkg/clientip"
)

// RateLimitKeyPrefix is the Redis key prefix for rate limiting
const RateLimitKeyPrefix = "safezone:ratelimit:"

// Decision is the outcome of one hit against a sliding window.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration // until the oldest hit leaves the window
}

// Limiter counts hits per key over a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// MemoryLimiter keeps hit timestamps in process memory. Rejected hits are
// not recorded.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)
	kept := m.hits[key][:0]
	for _, t := range m.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	d := Decision{Limit: m.limit}
	if len(kept) < m.limit {
		kept = append(kept, now)
		d.Allowed = true
	}
	d.Remaining = m.limit - len(kept)
	d.ResetAfter = kept[0].Add(m.window).Sub(now)

	m.hits[key] = kept
	return d, nil
}

// Cleanup drops keys with no hits inside the window.
func (m *MemoryLimiter) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.window)
	for k, ts := range m.hits {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(m.hits, k)
		}
	}
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (m *MemoryLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// slidingWindowScript trims expired hits, records the new one when under the
// limit and reports {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldestScore = now
if oldest[2] then
	oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// RedisLimiter shares the window across instances through a sorted set per
// key. On Redis errors it falls back to a local MemoryLimiter.
type RedisLimiter struct {
	client   *redis.Client
	limit    int
	window   time.Duration
	fallback *MemoryLimiter
	log      *zap.Logger
	now      func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:   client,
		limit:    limit,
		window:   window,
		fallback: NewMemoryLimiter(limit, window),
		log:      log,
		now:      time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	nowMs := l.now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{RateLimitKeyPrefix + key},
		nowMs, l.window.Milliseconds(), l.limit, ksuid.New().String(),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		l.log.Warn("redis rate limiter unavailable, using memory", zap.Error(err))
		return l.fallback.Allow(ctx, key)
	}

	return Decision{
		Allowed:    res[0] == 1,
		Limit:      l.limit,
		Remaining:  l.limit - int(res[1]),
		ResetAfter: time.Duration(res[2]+l.window.Milliseconds()-nowMs) * time.Millisecond,
	}, nil
}

// KeyFunc picks the bucket a request counts against.
type KeyFunc func(r *http.Request) string

// UserOrIPKey buckets authenticated callers by user id and everyone else by
// client IP.
func UserOrIPKey(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if u := UserFrom(r.Context()); u != nil {
			return "user:" + u.ID
		}
		return "ip:" + clientip.RealClientIP(r, trustProxy)
	}
}

// RateLimit enforces l per key, sets the RateLimit-* headers and rejects
// with 429 and message once the window is full.
func RateLimit(l Limiter, name string, key KeyFunc, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), name+":"+key(r))
			if err != nil {
				LoggerFrom(r.Context()).Warn("rate limiter error, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			reset := int(math.Ceil(d.ResetAfter.Seconds()))
			if reset < 0 {
				reset = 0
			}
			w.Header().Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
			w.Header().Set("RateLimit-Reset", strconv.Itoa(reset))

			if !d.Allowed {
				WriteError(w, r, apperror.RateLimited(message, strconv.Itoa(reset)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
