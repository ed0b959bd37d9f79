package services

import "context"

type contextKey string

const (
	postIDKey    contextKey = "post_id"
	userIDKey    contextKey = "user_id"
	workerKey    contextKey = "worker"
	requestIDKey contextKey = "request_id"
)

// WithPostID annotates context with the post identifier.
func WithPostID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, postIDKey, id)
}

// PostIDFromContext extracts the post identifier if present.
func PostIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(postIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithUserID annotates context with the authenticated user identifier.
func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the authenticated user identifier if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWorker annotates context with the analysis worker name.
func WithWorker(ctx context.Context, worker string) context.Context {
	if worker == "" {
		return ctx
	}
	return context.WithValue(ctx, workerKey, worker)
}

// WorkerFromContext returns the worker name if present.
func WorkerFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
