// Package ratelimit implements the sliding-window limiter described in
// SPEC_FULL.md §4.3: a Redis sorted set per (category, identifier) keeps the
// request timestamps inside the current window; the count drives the
// allow/deny decision. On Redis failure the limiter fails open and falls
// back to a stricter process-local token bucket (golang.org/x/time/rate)
// rather than unconditional allow.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/udaycodespace/enterprise-data-trust-risk-audit/pkg/circuitbreaker"
)

// Category names the counter a request consumes a slot in.
type Category string

const (
	CategoryIP       Category = "ip"
	CategoryUser     Category = "user"
	CategoryEndpoint Category = "endpoint"
	CategoryLogin    Category = "login"
	CategoryPayment  Category = "payment"
)

// Limit pairs a request ceiling with the window it applies to.
type Limit struct {
	Max    int64
	Window time.Duration
}

// DefaultLimits are the module defaults from SPEC_FULL.md §4.3.
func DefaultLimits() map[Category]Limit {
	return map[Category]Limit{
		CategoryIP:       {Max: 100, Window: time.Minute},
		CategoryUser:     {Max: 50, Window: time.Minute},
		CategoryLogin:    {Max: 10, Window: time.Minute},
		CategoryPayment:  {Max: 5, Window: time.Minute},
		CategoryEndpoint: {Max: 100, Window: time.Minute},
	}
}

// Result is the outcome of a Check call.
type Result struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
	Category   Category
	FailedOpen bool
}

// Limiter checks request counts against the configured per-category limits.
type Limiter struct {
	redis    *redis.Client
	limits   map[Category]Limit
	logger   *zap.Logger
	fallback *localFallback
	breaker  *circuitbreaker.CircuitBreaker

	onRedisFailure func()
}

// New constructs a Limiter. A nil redisClient is invalid; fallback is always
// armed in case the client starts failing mid-process.
func New(redisClient *redis.Client, limits map[Category]Limit, logger *zap.Logger) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{
		redis:    redisClient,
		limits:   limits,
		logger:   logger,
		fallback: newLocalFallback(limits),
	}
}

// OnRedisFailure registers a callback invoked (best-effort, non-blocking)
// every time the primary store is unreachable, so callers can increment a
// metric and page on sustained failure per SPEC_FULL.md §4.3.
func (l *Limiter) OnRedisFailure(fn func()) { l.onRedisFailure = fn }

// SetBreaker arms a circuit breaker around the Redis pipeline in
// slidingWindow. Once it trips, Check fails open to the local fallback
// without round-tripping to Redis at all, same as any other Redis error.
func (l *Limiter) SetBreaker(cb *circuitbreaker.CircuitBreaker) { l.breaker = cb }

// Fingerprint computes the IP-fingerprint identity used for CategoryIP:
// SHA256(ip|user_agent|client_fingerprint_header)[0:16]. The raw IP alone is
// never used as an identifier.
func Fingerprint(ip, userAgent, clientFingerprintHeader string) string {
	data := fmt.Sprintf("%s|%s|%s", ip, userAgent, clientFingerprintHeader)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:16]
}

// Check consumes one slot for (category, identifier) and reports whether the
// request is allowed. On a Redis error it fails open (allows the request)
// using the stricter local fallback bucket and reports FailedOpen so the
// caller can emit a warning/metric without failing the request.
func (l *Limiter) Check(ctx context.Context, category Category, identifier string) (Result, error) {
	limit, ok := l.limits[category]
	if !ok {
		limit = l.limits[CategoryEndpoint]
	}

	var count int64
	var retryAfter time.Duration
	var err error
	if l.breaker != nil {
		err = l.breaker.Execute(ctx, func() error {
			var innerErr error
			count, retryAfter, innerErr = l.slidingWindow(ctx, category, identifier, limit)
			return innerErr
		})
	} else {
		count, retryAfter, err = l.slidingWindow(ctx, category, identifier, limit)
	}
	if err != nil {
		if l.onRedisFailure != nil {
			go l.onRedisFailure()
		}
		if l.logger != nil {
			l.logger.Warn("rate limiter store unreachable, failing open to local fallback",
				zap.String("category", string(category)), zap.Error(err))
		}
		allowed := l.fallback.allow(category, identifier)
		return Result{Allowed: allowed, Category: category, FailedOpen: true, Limit: limit.Max}, nil
	}

	allowed := count <= limit.Max
	return Result{
		Allowed:    allowed,
		Count:      count,
		Limit:      limit.Max,
		RetryAfter: retryAfter,
		Category:   category,
	}, nil
}

// slidingWindow implements the exact pipeline from SPEC_FULL.md §4.3:
// ZREMRANGEBYSCORE removes entries older than now-window, ZADD inserts now,
// ZCARD reads the count, EXPIRE refreshes the TTL to window+10s. When the
// count exceeds the limit, retry_after = window - (now - oldest) + 1.
func (l *Limiter) slidingWindow(ctx context.Context, category Category, identifier string, limit Limit) (int64, time.Duration, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", category, identifier)
	now := time.Now()
	nowScore := float64(now.UnixNano()) / 1e9
	windowStart := nowScore - limit.Window.Seconds()

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%f", windowStart))
	pipe.ZAdd(ctx, key, redis.Z{Score: nowScore, Member: fmt.Sprintf("%d", now.UnixNano())})
	cardCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, limit.Window+10*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := cardCmd.Val()
	if count <= limit.Max {
		return count, 0, nil
	}

	oldest, err := l.redis.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return count, limit.Window, nil
	}
	retryAfter := time.Duration(limit.Window.Seconds()-(nowScore-oldest[0].Score)+1) * time.Second
	if retryAfter < 0 {
		retryAfter = 0
	}
	return count, retryAfter, nil
}

// localFallback is a per-process, per-(category,identifier) token bucket used
// only while the shared store is unreachable. It is deliberately stricter
// than the distributed limits since it cannot see traffic landing on other
// replicas.
type localFallback struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[Category]Limit
}

func newLocalFallback(limits map[Category]Limit) *localFallback {
	return &localFallback{
		limiters: make(map[string]*rate.Limiter),
		limits:   limits,
	}
}

func (f *localFallback) allow(category Category, identifier string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := string(category) + ":" + identifier
	lim, ok := f.limiters[key]
	if !ok {
		base := f.limits[category]
		// Halve the distributed limit: stricter fallback per SPEC_FULL.md §13.2.
		perSecond := rate.Limit(float64(base.Max) / base.Window.Seconds() / 2)
		if perSecond <= 0 {
			perSecond = rate.Limit(0.1)
		}
		lim = rate.NewLimiter(perSecond, 1)
		f.limiters[key] = lim
	}
	return lim.Allow()
}
