// Package security holds optional, disabled-by-default guards that sit in
// front of the webhook processor (internal/domain/services/webhook):
// source-IP allowlisting and per-provider rate limiting. Neither is part of
// the spec's required webhook algorithm; both are supplemented defenses a
// deployment may turn on per provider.
package security

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WebhookIPWhitelist validates webhook source IPs against per-provider CIDR
// lists. A provider with no configured list is allowed through unchanged.
type WebhookIPWhitelist struct {
	allowedCIDRs map[string][]string
	logger       *zap.Logger
}

func NewWebhookIPWhitelist(allowedCIDRs map[string][]string, logger *zap.Logger) *WebhookIPWhitelist {
	return &WebhookIPWhitelist{allowedCIDRs: allowedCIDRs, logger: logger}
}

func (w *WebhookIPWhitelist) ValidateIP(provider, clientIP string) error {
	allowed, exists := w.allowedCIDRs[provider]
	if !exists || len(allowed) == 0 {
		return nil
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return fmt.Errorf("invalid IP address: %s", clientIP)
	}

	for _, cidr := range allowed {
		if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
			if ipNet.Contains(ip) {
				return nil
			}
			continue
		}
		if single := net.ParseIP(cidr); single != nil && single.Equal(ip) {
			return nil
		}
	}

	w.logger.Warn("webhook source IP not whitelisted", zap.String("provider", provider), zap.String("client_ip", clientIP))
	return fmt.Errorf("source IP not whitelisted for provider %s", provider)
}

// WebhookRateLimit caps delivery volume for a single provider.
type WebhookRateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// WebhookRateLimiter is a fixed-window counter per provider, separate from
// the sliding-window limiter in pkg/ratelimit because webhook delivery
// volume is provider-controlled, not client-controlled, and tolerates a
// coarser window.
type WebhookRateLimiter struct {
	redis  *redis.Client
	limits map[string]WebhookRateLimit
	logger *zap.Logger
}

func NewWebhookRateLimiter(redisClient *redis.Client, limits map[string]WebhookRateLimit, logger *zap.Logger) *WebhookRateLimiter {
	return &WebhookRateLimiter{redis: redisClient, limits: limits, logger: logger}
}

// Allow reports whether provider is under its limit for the current window,
// failing open on a Redis error since this is a supplemental guard, not the
// module's primary rate limiter.
func (w *WebhookRateLimiter) Allow(ctx context.Context, provider string) (bool, error) {
	limit, exists := w.limits[provider]
	if !exists {
		limit = w.limits["default"]
		if limit.MaxRequests == 0 {
			return true, nil
		}
	}
	windowSeconds := int64(limit.Window.Seconds())
	if windowSeconds == 0 {
		windowSeconds = 60
	}

	key := fmt.Sprintf("webhook:rate:%s:%d", provider, time.Now().Unix()/windowSeconds)
	current, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		w.logger.Warn("webhook rate limiter redis error, failing open", zap.Error(err))
		return true, nil
	}
	if current == 1 {
		w.redis.Expire(ctx, key, limit.Window)
	}
	return current <= int64(limit.MaxRequests), nil
}
