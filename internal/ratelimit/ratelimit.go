// Package ratelimit throttles vote casting per network origin.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/abrezinsky/electionvote/internal/logger"
)

// Decision is the outcome of one limiter check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter is a fixed-window counter shared by every server instance.
// Keys are prefix:key. The window key is created with its expiry and
// incremented in one MULTI, so a key never outlives its window.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter creates a limiter allowing limit hits per window per key
func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSuffix(prefix, ":"), limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + ":" + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("counting %s: %w", k, err)
	}

	// A key written without expiry by an older release
	if ttl.Val() == -1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("setting ttl on %s: %w", k, err)
		}
	}

	count := incr.Val()
	if count > int64(l.limit) {
		retry := ttl.Val()
		if retry <= 0 {
			retry = l.window
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - int(count)}, nil
}

// LocalLimiter is an in-process token bucket per key, used when no Redis
// address is configured.
type LocalLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	now      func() time.Time
	lastScan time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter refills limit tokens per window with a burst of limit
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		idleTTL: 2 * window,
		now:     time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Remaining: int(b.limiter.TokensAt(now))}, nil
}

func (l *LocalLimiter) evictIdle(now time.Time) {
	if now.Sub(l.lastScan) < l.idleTTL {
		return
	}
	l.lastScan = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Len returns the number of tracked keys
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Middleware refuses requests over the limit with 429. A limiter failure is
// logged and the request is let through.
func Middleware(l Limiter, key func(*http.Request) string, log logger.Logger, onLimited func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), key(r))
			if err != nil {
				log.Warn("Rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				if onLimited != nil {
					onLimited()
				}
				secs := int(d.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"code":    "RATE_LIMITED",
					"message": "Too many requests",
					"error":   "Too many requests",
				})
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
