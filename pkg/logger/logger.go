// Package logger constructs the module's single zap.Logger: JSON encoding
// in production, colorized console encoding otherwise, with the level
// overridable by LOG_LEVEL without a restart-worthy config change.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger for the given environment ("production",
// "staging", "development") and level string (e.g. "info", "debug"). An
// unrecognized level falls back to info.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	cfg.DisableStacktrace = env == "production"

	return cfg.Build()
}

// NewFromEnv reads ENV_NAME and LOG_LEVEL directly, for call sites that run
// before the config layer is available (e.g. the earliest lines of main).
func NewFromEnv() (*zap.Logger, error) {
	return New(os.Getenv("ENV_NAME"), os.Getenv("LOG_LEVEL"))
}
