// Package mcp provides an MCP (Model Context Protocol) server adapter for ReviewPulse.
// It lets AI assistants trigger ingestion runs and read themes, metrics and actions.
package mcp

import "errors"

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("mcp: ingestion service is required")
