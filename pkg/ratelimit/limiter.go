package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether an actor may perform another request.
type Limiter interface {
	Allow(ctx context.Context, actor string) (bool, error)
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// TokenBucket is an in-memory token bucket keyed by actor. It has an
// explicit lifecycle: construct it in main, Start the janitor, Stop on
// shutdown. State never lives in a package-level map.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	burst  float64
	refill time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTokenBucket builds a limiter allowing burst requests per actor,
// refilled one token per refill interval.
func NewTokenBucket(burst int, refill time.Duration) *TokenBucket {
	if burst <= 0 {
		burst = 10
	}
	if refill <= 0 {
		refill = time.Second
	}
	return &TokenBucket{
		buckets: make(map[string]*bucket),
		burst:   float64(burst),
		refill:  refill,
		stop:    make(chan struct{}),
	}
}

// Allow consumes one token for the actor when available.
func (t *TokenBucket) Allow(_ context.Context, actor string) (bool, error) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[actor]
	if !ok {
		b = &bucket{tokens: t.burst}
		t.buckets[actor] = b
	} else {
		elapsed := now.Sub(b.lastSeen)
		b.tokens += float64(elapsed) / float64(t.refill)
		if b.tokens > t.burst {
			b.tokens = t.burst
		}
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Start launches a janitor that evicts buckets idle long enough to be full.
func (t *TokenBucket) Start(ctx context.Context) {
	idle := time.Duration(t.burst) * t.refill
	if idle < time.Minute {
		idle = time.Minute
	}
	go func() {
		ticker := time.NewTicker(idle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-idle)
				t.mu.Lock()
				for actor, b := range t.buckets {
					if b.lastSeen.Before(cutoff) {
						delete(t.buckets, actor)
					}
				}
				t.mu.Unlock()
			}
		}
	}()
}

// Stop terminates the janitor.
func (t *TokenBucket) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// RedisLimiter enforces a fixed window per actor through Redis so the limit
// holds across horizontally scaled replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	burst  int64
	window time.Duration
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, prefix string, burst int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	if burst <= 0 {
		burst = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, prefix: prefix, burst: int64(burst), window: window}
}

// Allow increments the actor's window counter. Redis failures fail open:
// the caller may proceed but receives the error for logging.
func (r *RedisLimiter) Allow(ctx context.Context, actor string) (bool, error) {
	key := fmt.Sprintf("%s:%s", r.prefix, actor)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("ratelimit incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return true, fmt.Errorf("ratelimit expire %s: %w", key, err)
		}
	}
	return count <= r.burst, nil
}
