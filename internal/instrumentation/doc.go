// Package instrumentation provides OpenTelemetry instrumentation for the
// connectd service.
//
// # Metrics
//
// HTTP metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Authorization flow metrics:
//   - oauth_flows_started_total: Counter of flow starts by provider and result
//   - oauth_flows_completed_total: Counter of flow completions by provider and result
//   - oauth_token_exchange_duration_seconds: Histogram of token endpoint round trips
//   - oauth_pending_authorizations: Gauge of flows awaiting their provider callback
//
// MCP tool metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for flow legs (flow.start, flow.complete), token
// exchanges (oauth.token_exchange), and MCP tool invocations (tool.<name>).
//
// # Configuration
//
// Configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate 0.0 to 1.0 (default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: connectd)
//
// The package also carries the audit trail of connection attempts, which
// records which skill connected which provider for which organization.
package instrumentation
