package logging

import (
	"context"
	"log/slog"

	"grabarr/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized structured logging key for acquisition request identifiers.
	FieldRequestID = "request_id"
	// FieldOrganizeID is the standardized structured logging key for organize queue item identifiers.
	FieldOrganizeID = "organize_id"
	// FieldIndexer is the standardized structured logging key for indexer names.
	FieldIndexer = "indexer"
	// FieldGID is the standardized structured logging key for download engine transfer identifiers.
	FieldGID = "gid"
	// FieldCorrelationID is the standardized structured logging key for API correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldRequestID, id))
	}
	if id, ok := services.OrganizeIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldOrganizeID, id))
	}
	if rid, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
