package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ConnectionAttempt captures one leg of an authorization flow (start or
// complete) for the audit trail. Organizations ask "who connected what,
// when" and this is the record that answers it.
//
// Redirect URIs can embed per-user path segments, so by default only the
// redirect host is written to audit events; the full URI appears only when
// the audit config opts in.
type ConnectionAttempt struct {
	// Operation is "start" or "complete".
	Operation string

	// Flow identity
	SkillID    string
	OrgID      string
	ProviderID string

	// RedirectURI is the callback URL of the flow.
	RedirectURI string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// RedirectHost returns the host portion of the redirect URI for
// lower-cardinality logging.
func (ca *ConnectionAttempt) RedirectHost() string {
	return ExtractRedirectHost(ca.RedirectURI)
}

// Status returns "success" or "error" based on the Success field.
func (ca *ConnectionAttempt) Status() string {
	if ca.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the attempt. When includeRedirectURI
// is false the full redirect URI is replaced by its host.
func (ca *ConnectionAttempt) LogAttrs(includeRedirectURI bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", ca.Operation),
		slog.String("skill_id", ca.SkillID),
		slog.String("org_id", ca.OrgID),
		slog.String("provider", ca.ProviderID),
		slog.Duration("duration", ca.Duration),
		slog.Bool("success", ca.Success),
	}

	if includeRedirectURI && ca.RedirectURI != "" {
		attrs = append(attrs, slog.String("redirect_uri", ca.RedirectURI))
	} else if ca.RedirectURI != "" {
		attrs = append(attrs, slog.String("redirect_host", ca.RedirectHost()))
	}
	if ca.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ca.TraceID))
	}
	if ca.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ca.SpanID))
	}
	if ca.Error != "" {
		attrs = append(attrs, slog.String("error", ca.Error))
	}

	return attrs
}

// NewConnectionAttempt creates a new attempt record with timing started.
// Call Complete() when the flow leg finishes.
func NewConnectionAttempt(operation, skillID, orgID, providerID string) *ConnectionAttempt {
	return &ConnectionAttempt{
		Operation:  operation,
		SkillID:    skillID,
		OrgID:      orgID,
		ProviderID: providerID,
		StartTime:  time.Now(),
	}
}

// WithRedirectURI sets the flow's redirect URI.
func (ca *ConnectionAttempt) WithRedirectURI(uri string) *ConnectionAttempt {
	ca.RedirectURI = uri
	return ca
}

// WithSpanContext extracts trace context from the current span.
func (ca *ConnectionAttempt) WithSpanContext(ctx context.Context) *ConnectionAttempt {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ca.TraceID = span.SpanContext().TraceID().String()
		ca.SpanID = span.SpanContext().SpanID().String()
	}
	return ca
}

// Complete marks the attempt as finished and calculates duration.
// Returns the same ConnectionAttempt for method chaining.
func (ca *ConnectionAttempt) Complete(success bool, err error) *ConnectionAttempt {
	ca.Duration = time.Since(ca.StartTime)
	ca.Success = success
	if err != nil {
		ca.Error = err.Error()
	}
	return ca
}

// CompleteWithError marks the attempt as failed with the given error.
func (ca *ConnectionAttempt) CompleteWithError(err error) *ConnectionAttempt {
	return ca.Complete(false, err)
}

// CompleteSuccess marks the attempt as successful.
func (ca *ConnectionAttempt) CompleteSuccess() *ConnectionAttempt {
	return ca.Complete(true, nil)
}

// AuditLogger writes the connection-attempt audit trail. It wraps
// slog.Logger so audit events can be routed to a dedicated stream by
// handler configuration.
type AuditLogger struct {
	logger             *slog.Logger
	includeRedirectURI bool
	enabled            bool
}

// NewAuditLogger creates an AuditLogger with default settings: enabled,
// redirect hosts only.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:             logger,
		includeRedirectURI: config.IncludeRedirectURI,
		enabled:            config.Enabled,
	}
}

// LogConnectionAttempt writes one audit event for a flow leg. Successful
// attempts log at info, failed ones at warn.
func (al *AuditLogger) LogConnectionAttempt(ca *ConnectionAttempt) {
	if !al.enabled {
		return
	}

	attrs := ca.LogAttrs(al.includeRedirectURI)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ca.Success {
		al.logger.Info("connection_attempt", args...)
	} else {
		al.logger.Warn("connection_attempt_failed", args...)
	}
}
