package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyProvider  = "provider"
	KeySkill     = "skill_id"
	KeyOrg       = "org_id"
	KeyStateHash = "state_hash"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithProvider returns a logger with the provider attribute set.
func WithProvider(logger *slog.Logger, provider string) *slog.Logger {
	return logger.With(slog.String(KeyProvider, provider))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Provider returns a slog attribute for the provider id.
func Provider(id string) slog.Attr {
	return slog.String(KeyProvider, id)
}

// Skill returns a slog attribute for the skill id.
func Skill(id string) slog.Attr {
	return slog.String(KeySkill, id)
}

// Org returns a slog attribute for the organization id.
func Org(id string) slog.Attr {
	return slog.String(KeyOrg, id)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
// This allows safely passing Err(maybeNilErr) without adding empty attributes.
func Err(err error) slog.Attr {
	if err == nil {
		// Return an empty Group that slog will omit from output
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// HashState returns a hashed representation of a state token for logging.
// State tokens are bearer-equivalent while a flow is pending, so they are
// never logged verbatim; the hash still allows correlating the two legs
// of a flow in the logs.
func HashState(state string) string {
	if state == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(state))
	return "state:" + hex.EncodeToString(hash[:8])
}

// StateHash returns a slog attribute with the hashed state token.
func StateHash(state string) slog.Attr {
	return slog.String(KeyStateHash, HashState(state))
}

// SanitizeToken returns a masked version of a token for logging.
// It returns a length indicator without exposing any token content,
// as even partial token prefixes can aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
