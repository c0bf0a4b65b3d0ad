// Package logging provides the structured logger shared by the agent,
// engine, and router binaries.
package logging

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextKey is the type for context keys used by this package.
type ContextKey string

const (
	// RequestIDKey is the context key under which a correlation id is stored.
	RequestIDKey ContextKey = "requestID"
)

// NewLogger builds the process-wide structured logger.
func NewLogger(development bool) (*zap.Logger, error) {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// NewZapLogger adapts a zap.Logger to logr.Logger, for collaborators built
// against the logr interface (e.g. a controller-runtime based orchestrator
// shim).
func NewZapLogger(zapLogger *zap.Logger, development bool) logr.Logger {
	return zapr.NewLogger(zapLogger)
}

// WithRequestID stamps a fresh correlation id onto the context.
func WithRequestID(ctx context.Context) context.Context {
	requestID := uuid.New().String()
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithExistingRequestID stamps a caller-supplied correlation id onto the
// context, used when the id arrives from an inbound request header instead
// of being minted locally.
func WithExistingRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return WithRequestID(ctx)
	}
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the correlation id from the context, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestIDField returns a logger with the correlation id attached as a
// field, when present in ctx.
func WithRequestIDField(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if requestID := GetRequestID(ctx); requestID != "" {
		return logger.With(zap.String("requestID", requestID))
	}
	return logger
}

// LogAlertReceived logs an inbound alert before debounce/cooldown evaluation.
func LogAlertReceived(logger *zap.Logger, service, container, scenario, node string) {
	logger.Info("alert received",
		zap.String("service", service),
		zap.String("container", container),
		zap.String("scenario", scenario),
		zap.String("node", node),
	)
}

// LogActionDispatched logs the start of a recovery action.
func LogActionDispatched(logger *zap.Logger, service, action string) {
	logger.Info("action dispatched",
		zap.String("service", service),
		zap.String("action", action),
	)
}

// LogActionOutcome logs the terminal outcome of a recovery action.
func LogActionOutcome(logger *zap.Logger, service, action, outcome string, duration string) {
	logger.Info("action outcome",
		zap.String("service", service),
		zap.String("action", action),
		zap.String("outcome", outcome),
		zap.String("duration", duration),
	)
}

// LogSelection logs a router replica selection decision at a sampled rate;
// callers are responsible for the "every Nth request" sampling (spec.md §4.3).
func LogSelection(logger *zap.Logger, algorithm, replica string, requestCount int64) {
	logger.Info("replica selected",
		zap.String("algorithm", algorithm),
		zap.String("replica", replica),
		zap.Int64("requestCount", requestCount),
	)
}
