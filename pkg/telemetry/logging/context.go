package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// ActorKey is the context key for the metered actor.
	ActorKey contextKey = "actor"

	// EventIDKey is the context key for usage event IDs.
	EventIDKey contextKey = "event_id"
)

// WithActor adds an actor identifier to the context.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey, actorID)
}

// GetActor retrieves the actor identifier from the context.
func GetActor(ctx context.Context) string {
	if actorID, ok := ctx.Value(ActorKey).(string); ok {
		return actorID
	}
	return ""
}

// WithEventID adds a usage event ID to the context.
func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

// GetEventID retrieves the usage event ID from the context.
func GetEventID(ctx context.Context) string {
	if eventID, ok := ctx.Value(EventIDKey).(string); ok {
		return eventID
	}
	return ""
}

// extractContextFields returns the log attributes carried by ctx.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if actorID := GetActor(ctx); actorID != "" {
		attrs = append(attrs, slog.String(string(ActorKey), actorID))
	}
	if eventID := GetEventID(ctx); eventID != "" {
		attrs = append(attrs, slog.String(string(EventIDKey), eventID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// ContextHandler adds context fields to every record it handles.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: next}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := extractContextFields(ctx); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
