// Package observability provides structured logging for the resolution tools.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/gmtools/internal/config"
)

// formats maps LoggingConfig.Format to the zap preset it starts from.
var formats = map[string]func() zap.Config{
	"json":    unsampledProduction,
	"console": zap.NewDevelopmentConfig,
}

// unsampledProduction is zap's production preset without sampling, so a burst
// of chain truncation warnings is logged in full.
func unsampledProduction() zap.Config {
	c := zap.NewProductionConfig()
	c.Sampling = nil
	return c
}

// buildConfig translates cfg into a zap.Config. Every format writes to stderr
// because cmd/resolve prints its report on stdout.
//
// Postcondition: Returns a buildable config or an error naming the bad field.
func buildConfig(cfg config.LoggingConfig) (zap.Config, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	preset, ok := formats[cfg.Format]
	if !ok {
		return zap.Config{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zc := preset()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc, nil
}

// NewLogger builds the logger for one binary. A non-empty component is
// attached to every entry.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, component string) (*zap.Logger, error) {
	zc, err := buildConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	if component != "" {
		logger = logger.With(zap.String("component", component))
	}
	return logger, nil
}
