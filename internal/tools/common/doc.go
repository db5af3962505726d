// Package common provides shared helpers for MCP tool packages, currently
// the instrumentation wrapper that gives every tool a span and invocation
// metrics.
package common
