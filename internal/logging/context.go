package logging

import (
	"context"
	"log/slog"

	"deepshield/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPostID is the standardized key for post identifiers.
	FieldPostID = "post_id"
	// FieldUserID is the standardized key for authenticated user identifiers.
	FieldUserID = "user_id"
	// FieldWorker is the standardized key for analysis worker names.
	FieldWorker = "worker"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies lifecycle log lines (analysis_started, analysis_failed, ...).
	FieldEventType = "event_type"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.PostIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPostID, id))
	}
	if id, ok := services.UserIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUserID, id))
	}
	if worker, ok := services.WorkerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorker, worker))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
