// Package config loads the module's configuration from environment
// variables (optionally seeded by a .env file in local development) using
// viper, and validates that every required secret is present before the
// process finishes starting — per SPEC_FULL.md §6, a missing signing or
// database secret must fail fast, not surface as a runtime 500 on first use.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every externally supplied setting the module needs.
type Config struct {
	Env      string
	HTTPPort int

	DatabaseURL        string
	DatabaseMaxConns   int
	DatabaseMinConns   int
	StatementTimeoutMS int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuditHMACSecret  string
	CursorSigningKey string
	WebhookSecrets   map[string]string // provider -> secret, e.g. APP_WEBHOOK_SECRET_STRIPE

	RateLimitFailOpen bool

	// WebhookIPAllowlistEnabled/WebhookAllowedCIDRs gate pkg/security's
	// WebhookIPWhitelist. Disabled by default: a deployment opts a provider
	// in by setting APP_WEBHOOK_ALLOWED_CIDRS_<PROVIDER>.
	WebhookIPAllowlistEnabled bool
	WebhookAllowedCIDRs       map[string][]string

	// WebhookRateLimitEnabled/WebhookRateLimits gate pkg/security's
	// WebhookRateLimiter. Disabled by default: a deployment opts a provider
	// in by setting APP_WEBHOOK_RATE_LIMIT_<PROVIDER>="max:window_seconds".
	WebhookRateLimitEnabled bool
	WebhookRateLimits       map[string]WebhookRateLimitConfig

	LogLevel string

	OTELCollectorURL string
}

// WebhookRateLimitConfig is the per-provider fixed-window limit a
// deployment can set via APP_WEBHOOK_RATE_LIMIT_<PROVIDER>.
type WebhookRateLimitConfig struct {
	MaxRequests int
	WindowSecs  int
}

// Load reads .env (if present; a missing file is not an error — production
// deployments supply real environment variables instead) then binds viper
// to the process environment, and validates required secrets.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetDefault("env", "development")
	v.SetDefault("http_port", 8080)
	v.SetDefault("database_max_conns", 20)
	v.SetDefault("database_min_conns", 5)
	v.SetDefault("statement_timeout_ms", int(30*time.Second/time.Millisecond))
	v.SetDefault("redis_db", 0)
	v.SetDefault("rate_limit_fail_open", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_collector_url", "localhost:4317")

	allowedCIDRs := loadWebhookAllowedCIDRs()
	rateLimits := loadWebhookRateLimits()

	cfg := &Config{
		Env:                v.GetString("env"),
		HTTPPort:           v.GetInt("http_port"),
		DatabaseURL:        v.GetString("database_url"),
		DatabaseMaxConns:   v.GetInt("database_max_conns"),
		DatabaseMinConns:   v.GetInt("database_min_conns"),
		StatementTimeoutMS: v.GetInt("statement_timeout_ms"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPassword:      v.GetString("redis_password"),
		RedisDB:            v.GetInt("redis_db"),
		AuditHMACSecret:    v.GetString("audit_hmac_secret"),
		CursorSigningKey:   v.GetString("cursor_signing_key"),
		RateLimitFailOpen:  v.GetBool("rate_limit_fail_open"),
		LogLevel:           v.GetString("log_level"),
		OTELCollectorURL:   v.GetString("otel_collector_url"),
		WebhookSecrets:     loadWebhookSecrets(),

		WebhookIPAllowlistEnabled: len(allowedCIDRs) > 0,
		WebhookAllowedCIDRs:       allowedCIDRs,
		WebhookRateLimitEnabled:   len(rateLimits) > 0,
		WebhookRateLimits:         rateLimits,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadWebhookSecrets reads APP_WEBHOOK_SECRET_<PROVIDER> variables into a
// provider -> secret map (e.g. APP_WEBHOOK_SECRET_STRIPE -> "stripe").
func loadWebhookSecrets() map[string]string {
	secrets := make(map[string]string)
	const prefix = "APP_WEBHOOK_SECRET_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		provider := strings.ToLower(strings.TrimPrefix(parts[0], prefix))
		secrets[provider] = parts[1]
	}
	return secrets
}

// loadWebhookAllowedCIDRs reads APP_WEBHOOK_ALLOWED_CIDRS_<PROVIDER>
// variables (comma-separated CIDRs/IPs) into a provider -> list map. A
// provider with no such variable is left unrestricted.
func loadWebhookAllowedCIDRs() map[string][]string {
	cidrs := make(map[string][]string)
	const prefix = "APP_WEBHOOK_ALLOWED_CIDRS_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		provider := strings.ToLower(strings.TrimPrefix(parts[0], prefix))
		var list []string
		for _, entry := range strings.Split(parts[1], ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				list = append(list, entry)
			}
		}
		if len(list) > 0 {
			cidrs[provider] = list
		}
	}
	return cidrs
}

// loadWebhookRateLimits reads APP_WEBHOOK_RATE_LIMIT_<PROVIDER>="max:window_seconds"
// variables into a provider -> limit map.
func loadWebhookRateLimits() map[string]WebhookRateLimitConfig {
	limits := make(map[string]WebhookRateLimitConfig)
	const prefix = "APP_WEBHOOK_RATE_LIMIT_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		provider := strings.ToLower(strings.TrimPrefix(parts[0], prefix))
		spec := strings.SplitN(parts[1], ":", 2)
		if len(spec) != 2 {
			continue
		}
		var maxRequests, windowSecs int
		if _, err := fmt.Sscanf(spec[0], "%d", &maxRequests); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(spec[1], "%d", &windowSecs); err != nil {
			continue
		}
		if maxRequests > 0 && windowSecs > 0 {
			limits[provider] = WebhookRateLimitConfig{MaxRequests: maxRequests, WindowSecs: windowSecs}
		}
	}
	return limits
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "APP_DATABASE_URL")
	}
	if c.RedisAddr == "" {
		missing = append(missing, "APP_REDIS_ADDR")
	}
	if c.AuditHMACSecret == "" {
		missing = append(missing, "APP_AUDIT_HMAC_SECRET")
	}
	if c.CursorSigningKey == "" {
		missing = append(missing, "APP_CURSOR_SIGNING_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
