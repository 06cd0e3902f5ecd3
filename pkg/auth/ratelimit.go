package auth

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rhuss/rollcall/pkg/debug"
	"github.com/rhuss/rollcall/pkg/observability"
)

// LimitConfig holds token-bucket settings shared by every key.
type LimitConfig struct {
	// Capacity is the burst allowance and the size of a fresh bucket.
	Capacity int

	// RefillTokens are added over each RefillInterval.
	RefillTokens int

	RefillInterval time.Duration
}

// DefaultLimitConfig allows five attempts, refilled at five per minute.
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		Capacity:       5,
		RefillTokens:   5,
		RefillInterval: time.Minute,
	}
}

// Validate checks that every field is positive.
func (c LimitConfig) Validate() error {
	var errs []error
	if c.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be > 0, got %d", c.Capacity))
	}
	if c.RefillTokens <= 0 {
		errs = append(errs, fmt.Errorf("refill tokens must be > 0, got %d", c.RefillTokens))
	}
	if c.RefillInterval <= 0 {
		errs = append(errs, fmt.Errorf("refill interval must be > 0, got %s", c.RefillInterval))
	}
	return errors.Join(errs...)
}

// KeyedLimiter is an in-process token-bucket limiter with one bucket per key.
//
// Buckets refill continuously at RefillTokens/RefillInterval, computed lazily
// on access, and are capped at Capacity. A bucket is created at full capacity
// the first time its key is seen and lives for the lifetime of the limiter;
// idle buckets are never evicted.
//
// All methods are safe for concurrent use. Acquisition on one key is atomic;
// different keys never block each other.
type KeyedLimiter struct {
	cfg     LimitConfig
	limit   rate.Limit
	buckets sync.Map // string -> *rate.Limiter
	size    atomic.Int64
}

// NewKeyedLimiter creates a limiter with the given bucket settings.
func NewKeyedLimiter(cfg LimitConfig) (*KeyedLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rate limit config: %w", err)
	}
	return &KeyedLimiter{
		cfg:   cfg,
		limit: rate.Limit(float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()),
	}, nil
}

// TryAcquire consumes one token from the bucket for key at instant now.
// It returns false, consuming nothing, when the bucket is empty.
func (l *KeyedLimiter) TryAcquire(key string, now time.Time) bool {
	allowed := l.bucket(key).AllowN(now, 1)
	if !allowed {
		debug.Log("ratelimit", "bucket empty", "key", key)
	}
	return allowed
}

// Tokens reports the tokens available for key at instant now without
// consuming any. Unknown keys report full capacity.
func (l *KeyedLimiter) Tokens(key string, now time.Time) float64 {
	v, ok := l.buckets.Load(key)
	if !ok {
		return float64(l.cfg.Capacity)
	}
	return v.(*rate.Limiter).TokensAt(now)
}

// RetryAfter is the wait suggested to a rejected client: one full refill interval.
func (l *KeyedLimiter) RetryAfter() time.Duration {
	return l.cfg.RefillInterval
}

// Len returns the number of buckets created so far.
func (l *KeyedLimiter) Len() int {
	return int(l.size.Load())
}

// bucket returns the bucket for key, creating it on first use. LoadOrStore
// guarantees concurrent first requests for one key share a single bucket.
func (l *KeyedLimiter) bucket(key string) *rate.Limiter {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*rate.Limiter)
	}

	v, loaded := l.buckets.LoadOrStore(key, rate.NewLimiter(l.limit, l.cfg.Capacity))
	if !loaded {
		l.size.Add(1)
		observability.RateLimitBuckets.Inc()
		debug.Log("ratelimit", "bucket created", "key", key, "capacity", l.cfg.Capacity)
	}
	return v.(*rate.Limiter)
}
