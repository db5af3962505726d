// Package cmd implements the command-line interface for connectd.
//
// This package provides the following commands:
//   - serve: Start the connection API and MCP server
//   - providers: List the built-in OAuth provider catalog
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
