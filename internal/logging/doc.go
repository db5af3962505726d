// Package logging provides structured logging utilities for the connectd
// application.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - Consistent attribute naming across the codebase
//   - Sanitization of secrets (state tokens, access tokens) before logging
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "flow.start")
//	logger.Info("authorization started",
//	    logging.Provider("google"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("callback received",
//	    logging.StateHash(state))
//
// # Security Considerations
//
// State tokens correlate a pending flow with its callback and must never
// appear verbatim in logs; access and refresh tokens are never logged at
// all. Use HashState and SanitizeToken when a log line needs to reference
// either.
package logging
