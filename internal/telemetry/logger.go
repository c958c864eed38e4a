// Package telemetry builds the zap logger, emits metric log records, and
// bootstraps the OpenTelemetry providers.
package telemetry

import (
	"go.uber.org/zap"
)

// NewLogger returns the process logger. Staging and production log JSON at
// info level; anything else gets the human-readable development encoder.
// The returned logger already carries the service and connector fields every
// record must have.
func NewLogger(env, service, connector string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	switch env {
	case "staging", "production":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.MessageKey = "message"
		logger, err = cfg.Build()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", service),
		zap.String("connector", connector),
	), nil
}
