// Package connect_tools provides MCP tools for the connection flow:
// listing the provider catalog and starting authorization flows.
package connect_tools
