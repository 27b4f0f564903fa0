package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin   int
	CleanupInterval time.Duration
	// IdleTTL is how long an unused in-memory bucket is kept.
	IdleTTL time.Duration
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:   30,
		CleanupInterval: 10 * time.Minute,
		IdleTTL:         time.Hour,
	}
}

// Rate is Limit requests per Period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Metrics is the part of monitoring.Metrics the limiter reports to.
type Metrics interface {
	IncrementRateLimitBlock()
	IncrementRateLimitRedisError()
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter checks limits in Redis when it is available and in per-key
// token buckets otherwise.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      Metrics

	mu      sync.Mutex
	buckets map[string]*bucket

	stop chan struct{}
	once sync.Once
}

// NewRateLimiter creates a limiter. redisClient and metrics may be nil.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics Metrics) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultConfig().IdleTTL
	}

	rl := &RateLimiter{
		redisClient: redisClient,
		config:      config,
		metrics:     metrics,
		buckets:     make(map[string]*bucket),
		stop:        make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.Client())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Info("Using in-memory rate limiting")
	}

	go rl.cleanupLoop()
	return rl
}

// AllowIP applies the per-minute client limit.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, "ratelimit:ip:"+ip, Rate{Limit: rl.config.IPLimitPerMin, Period: time.Minute})
}

// Allow consumes one request from key's budget.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit Rate) (*Result, error) {
	if limit.Limit <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d/%s", limit.Limit, limit.Period)
	}

	if rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
	}
	return rl.allowFallback(key, limit), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit.Limit,
		Burst:  limit.Limit,
		Period: limit.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: max(res.RetryAfter, 0),
	}, nil
}

// allowFallback uses a token bucket refilling at Limit per Period with a
// burst of Limit.
func (rl *RateLimiter) allowFallback(key string, limit Rate) *Result {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		every := rate.Limit(float64(limit.Limit) / limit.Period.Seconds())
		b = &bucket{limiter: rate.NewLimiter(every, limit.Limit)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	perToken := time.Duration(float64(limit.Period) / float64(limit.Limit))

	result := &Result{
		Allowed:   allowed,
		Limit:     limit.Limit,
		Remaining: max(int(math.Floor(tokens)), 0),
		ResetAt:   now.Add(time.Duration((float64(limit.Limit) - tokens) * float64(perToken))),
	}
	if !allowed {
		result.RetryAfter = time.Duration((1 - tokens) * float64(perToken))
	}
	return result
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup drops buckets idle for longer than IdleTTL.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.config.IdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	fallbackCount := len(rl.buckets)
	rl.mu.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
		"ip_limit_per_min":  rl.config.IPLimitPerMin,
	}
	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}
	return stats
}

// Close stops the cleanup goroutine. It does not close the Redis client.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}
