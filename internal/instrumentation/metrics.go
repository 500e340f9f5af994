package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/workgate/workgate/internal/breaker"
)

// Metric attribute keys - using constants for consistency.
const (
	attrMethod    = "method"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrCircuit   = "circuit"
	attrState     = "state"
	attrAuth      = "auth_method"
	attrReason    = "reason"
	attrAccount   = "account"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// JSON-RPC metrics
	rpcRequestsTotal   metric.Int64Counter
	rpcRequestDuration metric.Float64Histogram
	activeSessions     metric.Int64UpDownCounter

	// Authentication metrics
	authAttemptsTotal      metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	// Upstream Google API metrics
	upstreamOperationsTotal   metric.Int64Counter
	upstreamOperationDuration metric.Float64Histogram

	// Circuit breaker metrics
	circuitTransitionsTotal metric.Int64Counter
	circuitRejectionsTotal  metric.Int64Counter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments
// initialized. The detailedLabels parameter controls whether
// high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.rpcRequestsTotal, err = meter.Int64Counter(
		"rpc_requests_total",
		metric.WithDescription("Total number of JSON-RPC requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc_requests_total counter: %w", err)
	}

	m.rpcRequestDuration, err = meter.Float64Histogram(
		"rpc_request_duration_seconds",
		metric.WithDescription("JSON-RPC request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc_request_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of active user sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	m.authAttemptsTotal, err = meter.Int64Counter(
		"auth_attempts_total",
		metric.WithDescription("Total number of authentication attempts by method and result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth_attempts_total counter: %w", err)
	}

	m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.upstreamOperationsTotal, err = meter.Int64Counter(
		"upstream_operations_total",
		metric.WithDescription("Total number of upstream Google API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream_operations_total counter: %w", err)
	}

	m.upstreamOperationDuration, err = meter.Float64Histogram(
		"upstream_operation_duration_seconds",
		metric.WithDescription("Upstream Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream_operation_duration_seconds histogram: %w", err)
	}

	m.circuitTransitionsTotal, err = meter.Int64Counter(
		"circuit_transitions_total",
		metric.WithDescription("Total number of circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit_transitions_total counter: %w", err)
	}

	m.circuitRejectionsTotal, err = meter.Int64Counter(
		"circuit_rejections_total",
		metric.WithDescription("Total number of calls rejected by an open circuit"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create circuit_rejections_total counter: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordRPCRequest records a JSON-RPC request with method, outcome, and
// duration. Method is from the fixed table, so cardinality is bounded.
func (m *Metrics) RecordRPCRequest(ctx context.Context, method, status string, duration time.Duration) {
	if m.rpcRequestsTotal == nil || m.rpcRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrStatus, status),
	}

	m.rpcRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.rpcRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAuthAttempt records an authentication attempt.
//
// Parameters:
//   - method: how the caller authenticated ("bearer", "cookie", "anonymous")
//   - result: "success" or "failure"
func (m *Metrics) RecordAuthAttempt(ctx context.Context, method, result string) {
	if m.authAttemptsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrAuth, method),
		attribute.String(attrResult, result),
	}

	m.authAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOAuthTokenRefresh records an OAuth token refresh attempt.
// Result should be one of: "success", "failure", "reauth_required"
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m.oauthTokenRefreshTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrResult, result),
	}

	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUpstreamOperation records an upstream Google API operation.
//
// Parameters:
//   - service: Google service name (gmail, calendar, drive, forms)
//   - operation: breaker operation name (listMessages, getForm, ...)
//   - status: "success" or "error"
//   - duration: time taken for the operation
func (m *Metrics) RecordUpstreamOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m.upstreamOperationsTotal == nil || m.upstreamOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.upstreamOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.upstreamOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordCircuitTransition records a circuit breaker state transition.
func (m *Metrics) RecordCircuitTransition(ctx context.Context, circuit, from, to string) {
	if m.circuitTransitionsTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrCircuit, circuit),
		attribute.String(attrState, to),
		attribute.String("from_state", from),
	}

	m.circuitTransitionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCircuitRejection records a call rejected by an open circuit.
func (m *Metrics) RecordCircuitRejection(ctx context.Context, circuit string) {
	if m.circuitRejectionsTotal == nil {
		return // Instrumentation not initialized
	}

	m.circuitRejectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrCircuit, circuit),
	))
}

// RecordToolInvocation records an MCP tool invocation.
//
// Parameters:
//   - toolName: name of the MCP tool (e.g., "gmail_list_messages")
//   - status: "success" or "error"
//   - account: user account/email (only included if detailedLabels is true)
//   - duration: time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrAccount, account))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveSessions increments the active sessions counter.
func (m *Metrics) IncrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return // Instrumentation not initialized
	}

	m.activeSessions.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions counter.
func (m *Metrics) DecrementActiveSessions(ctx context.Context) {
	if m.activeSessions == nil {
		return // Instrumentation not initialized
	}

	m.activeSessions.Add(ctx, -1)
}

// WatchBreakers consumes circuit breaker transition events and records
// them until the channel closes or the context ends. Run it in a
// goroutine next to the breaker registry.
func (m *Metrics) WatchBreakers(ctx context.Context, events <-chan breaker.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.RecordCircuitTransition(ctx, ev.Circuit, ev.From, ev.To)
		}
	}
}
