// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the workgate MCP gateway.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for JSON-RPC requests, authentication, token
//     refreshes, circuit breakers, and upstream Google API calls
//   - Distributed tracing for request flows and API calls
//   - Prometheus metrics export via /metrics endpoint on dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// JSON-RPC Metrics:
//   - rpc_requests_total: Counter of JSON-RPC requests by method and status
//   - rpc_request_duration_seconds: Histogram of JSON-RPC request durations
//   - active_sessions: Gauge of active user sessions
//
// Authentication Metrics:
//   - auth_attempts_total: Counter of authentication attempts by method and result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//
// Upstream API Metrics:
//   - upstream_operations_total: Counter of Google API operations by service, operation, status
//   - upstream_operation_duration_seconds: Histogram of Google API operation durations
//
// Circuit Breaker Metrics:
//   - circuit_transitions_total: Counter of breaker state transitions by circuit and state
//   - circuit_rejections_total: Counter of calls rejected by an open circuit
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - JSON-RPC method dispatch (rpc.<method>)
//   - MCP tool invocations (tool.<name>)
//   - Google API calls (google.<service>.<operation>)
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: workgate)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "workgate",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record a JSON-RPC request
//	recorder.RecordRPCRequest(ctx, "tools/call", "success", time.Since(start))
//
//	// Record an upstream Google API operation
//	recorder.RecordUpstreamOperation(ctx, "gmail", "listMessages", "success", time.Since(start))
package instrumentation
