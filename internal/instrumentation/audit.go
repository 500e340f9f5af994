package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// AuthEvent captures one authentication decision for the audit trail.
//
// # Privacy Considerations
//
// TokenPrefix is at most the first 8 characters of a presented bearer
// secret; the full value is never recorded anywhere. SessionID is an
// opaque UUID. Neither field identifies a user on its own.
type AuthEvent struct {
	// Method is how the caller authenticated: bearer, cookie, anonymous.
	Method string

	// Outcome is "success" or "failure".
	Outcome string

	// Reason explains a failure (unknown token, token revoked, ...).
	Reason string

	// SessionID is set on success.
	SessionID string

	// TokenPrefix is set when a presented bearer token was rejected.
	TokenPrefix string

	// Tracing context
	TraceID string

	At time.Time
}

// LogAttrs returns slog attributes for structured logging.
func (e *AuthEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("auth_method", e.Method),
		slog.String("outcome", e.Outcome),
	}
	if e.Reason != "" {
		attrs = append(attrs, slog.String("reason", e.Reason))
	}
	if e.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", e.SessionID))
	}
	if e.TokenPrefix != "" {
		attrs = append(attrs, slog.String("token_prefix", e.TokenPrefix))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	return attrs
}

// AuditLogger records authentication outcomes to the audit log stream and
// mirrors them into metrics. It satisfies the sink interfaces of both the
// resolver and the HTTP server.
type AuditLogger struct {
	logger  *slog.Logger
	metrics *Metrics
	enabled bool
}

// NewAuditLogger creates an AuditLogger. metrics may be nil when
// instrumentation is disabled; events are then only logged.
func NewAuditLogger(logger *slog.Logger, metrics *Metrics) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		metrics: metrics,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates an AuditLogger honoring the audit
// section of the instrumentation config.
func NewAuditLoggerWithConfig(logger *slog.Logger, metrics *Metrics, config AuditLoggingConfig) *AuditLogger {
	al := NewAuditLogger(logger, metrics)
	al.enabled = config.Enabled
	return al
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// BearerRejected records a presented bearer token that failed validation.
// Only the token prefix is retained.
func (al *AuditLogger) BearerRejected(ctx context.Context, tokenPrefix, reason string) {
	al.record(ctx, slog.LevelWarn, "auth_bearer_rejected", &AuthEvent{
		Method:      AuthMethodBearer,
		Outcome:     StatusError,
		Reason:      reason,
		TokenPrefix: tokenPrefix,
		At:          time.Now(),
	})
	if al.metrics != nil {
		al.metrics.RecordAuthAttempt(ctx, AuthMethodBearer, "failure")
	}
}

// AuthSucceeded records a successfully resolved principal.
func (al *AuditLogger) AuthSucceeded(ctx context.Context, method, sessionID string) {
	al.record(ctx, slog.LevelInfo, "auth_succeeded", &AuthEvent{
		Method:    method,
		Outcome:   StatusSuccess,
		SessionID: sessionID,
		At:        time.Now(),
	})
	if al.metrics != nil {
		al.metrics.RecordAuthAttempt(ctx, method, "success")
	}
}

// AuthFailed records a request that exhausted both authentication paths.
func (al *AuditLogger) AuthFailed(ctx context.Context, reason string) {
	al.record(ctx, slog.LevelWarn, "auth_failed", &AuthEvent{
		Method:  AuthMethodAnonymous,
		Outcome: StatusError,
		Reason:  reason,
		At:      time.Now(),
	})
	if al.metrics != nil {
		al.metrics.RecordAuthAttempt(ctx, AuthMethodAnonymous, "failure")
	}
}

func (al *AuditLogger) record(ctx context.Context, level slog.Level, msg string, event *AuthEvent) {
	if !al.enabled {
		return
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()
	}

	attrs := event.LogAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	al.logger.Log(ctx, level, msg, args...)
}
