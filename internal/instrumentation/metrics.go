package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrProvider = "provider"
	attrResult   = "result"
	attrTool     = "tool"
)

// Metrics provides methods for recording observability metrics. All
// recording methods are nil-safe on uninitialized instruments, so a
// zero-value Metrics behaves as a no-op recorder when instrumentation is
// disabled.
//
// Metrics satisfies flow.MetricsRecorder.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Authorization flow metrics
	flowsStartedTotal     metric.Int64Counter
	flowsCompletedTotal   metric.Int64Counter
	exchangeDuration      metric.Float64Histogram
	pendingAuthorizations metric.Int64UpDownCounter

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments registered
// on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.flowsStartedTotal, err = meter.Int64Counter(
		"oauth_flows_started_total",
		metric.WithDescription("Total number of authorization flows started"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_flows_started_total counter: %w", err)
	}

	m.flowsCompletedTotal, err = meter.Int64Counter(
		"oauth_flows_completed_total",
		metric.WithDescription("Total number of authorization flow completion attempts"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_flows_completed_total counter: %w", err)
	}

	m.exchangeDuration, err = meter.Float64Histogram(
		"oauth_token_exchange_duration_seconds",
		metric.WithDescription("Token endpoint round-trip duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_exchange_duration_seconds histogram: %w", err)
	}

	m.pendingAuthorizations, err = meter.Int64UpDownCounter(
		"oauth_pending_authorizations",
		metric.WithDescription("Number of authorization flows awaiting their provider callback"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_pending_authorizations gauge: %w", err)
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

// RecordHTTPRequest records an HTTP request with method, path, status code,
// and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFlowStarted records an authorization flow start attempt.
// Result should be one of: "success", "error".
func (m *Metrics) RecordFlowStarted(ctx context.Context, provider, result string) {
	if m.flowsStartedTotal == nil {
		return
	}

	m.flowsStartedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	))
}

// RecordFlowCompleted records an authorization flow completion attempt.
// Result should be one of: "success", "error".
func (m *Metrics) RecordFlowCompleted(ctx context.Context, provider, result string) {
	if m.flowsCompletedTotal == nil {
		return
	}

	m.flowsCompletedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	))
}

// RecordExchangeDuration records one token endpoint round trip.
func (m *Metrics) RecordExchangeDuration(ctx context.Context, provider string, d time.Duration, result string) {
	if m.exchangeDuration == nil {
		return
	}

	m.exchangeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrResult, result),
	))
}

// RecordPendingAuthorizations adjusts the pending-flow gauge by delta.
func (m *Metrics) RecordPendingAuthorizations(ctx context.Context, delta int64) {
	if m.pendingAuthorizations == nil {
		return
	}

	m.pendingAuthorizations.Add(ctx, delta)
}

// RecordToolInvocation records an MCP tool invocation with tool name,
// status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
