package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	sessionCtxKey  struct{}
	requestCtxKey  struct{}
	incidentCtxKey struct{}
	resourceCtxKey struct{}
	loggerCtxKey   struct{}
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if v := stringValue(ctx, sessionCtxKey{}); v != "" {
		fields = append(fields, zap.String("session.id", v))
	}
	if v := stringValue(ctx, requestCtxKey{}); v != "" {
		fields = append(fields, zap.String("request.id", v))
	}
	if v := stringValue(ctx, incidentCtxKey{}); v != "" {
		fields = append(fields, zap.String("incident.id", v))
	}
	if v := stringValue(ctx, resourceCtxKey{}); v != "" {
		fields = append(fields, zap.String("resource.key", v))
	}
	return fields
}

func stringValue(ctx context.Context, key any) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithSessionID tags the context with the local session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext returns the session identifier, if any.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionCtxKey{})
}

// WithRequestID tags the context with an outbound or inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request identifier, if any.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestCtxKey{})
}

// WithIncidentID tags the context with the incident being acted on.
func WithIncidentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, incidentCtxKey{}, id)
}

// WithResourceKey tags the context with a revalidation resource key.
func WithResourceKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, resourceCtxKey{}, key)
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
