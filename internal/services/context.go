package services

import "context"

type contextKey string

const (
	requestIDKey     contextKey = "request_id"
	organizeIDKey    contextKey = "organize_id"
	correlationIDKey contextKey = "correlation_id"
)

// WithRequestID annotates context with the acquisition request identifier.
func WithRequestID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the acquisition request identifier if present.
func RequestIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(requestIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithOrganizeID annotates context with the organize queue item identifier.
func WithOrganizeID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, organizeIDKey, id)
}

// OrganizeIDFromContext extracts the organize queue item identifier if present.
func OrganizeIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(organizeIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithCorrelationID annotates context with a correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
