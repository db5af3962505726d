package instrumentation

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditBuffer() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewJSONHandler(&buf, nil))
}

func TestConnectionAttempt_Complete(t *testing.T) {
	ca := NewConnectionAttempt(OperationStart, "skill-gmail", "org-1", "google")
	assert.False(t, ca.StartTime.IsZero())

	ca.CompleteSuccess()
	assert.True(t, ca.Success)
	assert.Equal(t, StatusSuccess, ca.Status())
	assert.Empty(t, ca.Error)

	ca2 := NewConnectionAttempt(OperationComplete, "skill-gmail", "org-1", "google")
	ca2.CompleteWithError(errors.New("token exchange failed"))
	assert.False(t, ca2.Success)
	assert.Equal(t, StatusError, ca2.Status())
	assert.Equal(t, "token exchange failed", ca2.Error)
}

func TestAuditLogger_RedirectURIRedactedByDefault(t *testing.T) {
	buf, logger := auditBuffer()
	al := NewAuditLogger(logger)

	ca := NewConnectionAttempt(OperationStart, "skill-gmail", "org-1", "google").
		WithRedirectURI("https://app.example.com/u/42/callback").
		CompleteSuccess()
	al.LogConnectionAttempt(ca)

	out := buf.String()
	assert.Contains(t, out, "connection_attempt")
	assert.Contains(t, out, "app.example.com")
	assert.NotContains(t, out, "/u/42/callback")
}

func TestAuditLogger_IncludeRedirectURIOptIn(t *testing.T) {
	buf, logger := auditBuffer()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{
		Enabled:            true,
		IncludeRedirectURI: true,
	})

	ca := NewConnectionAttempt(OperationStart, "skill-gmail", "org-1", "google").
		WithRedirectURI("https://app.example.com/u/42/callback").
		CompleteSuccess()
	al.LogConnectionAttempt(ca)

	assert.Contains(t, buf.String(), "https://app.example.com/u/42/callback")
}

func TestAuditLogger_FailureLogsWarn(t *testing.T) {
	buf, logger := auditBuffer()
	al := NewAuditLogger(logger)

	ca := NewConnectionAttempt(OperationComplete, "skill-gmail", "org-1", "google").
		CompleteWithError(errors.New("invalid_grant"))
	al.LogConnectionAttempt(ca)

	out := buf.String()
	assert.Contains(t, out, "connection_attempt_failed")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "invalid_grant")
}

func TestAuditLogger_Disabled(t *testing.T) {
	buf, logger := auditBuffer()
	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	ca := NewConnectionAttempt(OperationStart, "skill-gmail", "org-1", "google").CompleteSuccess()
	al.LogConnectionAttempt(ca)

	require.Empty(t, buf.String())
}
