package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	versionIDKey contextKey = "version_id"
	operationKey contextKey = "operation"
)

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run correlation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithVersionID annotates context with the tracking version identifier
// currently being processed.
func WithVersionID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, versionIDKey, id)
}

// VersionIDFromContext extracts the tracking version identifier if present.
func VersionIDFromContext(ctx context.Context) (int64, bool) {
	switch v := ctx.Value(versionIDKey).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// WithOperation annotates context with the running operation name
// (deliver, republish, generate-media).
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
