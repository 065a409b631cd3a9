package mcp

import (
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ingestion runs the review-to-theme pipeline.
	Ingestion driving.IngestionService

	// Insights reads manifests, themes, metrics and trends.
	Insights driving.InsightsService

	// Actions synthesises recommended actions for themes.
	Actions driving.ActionService
}

// Validate ensures all required ports are set.
// Insights and Actions are optional; their tools report an error when unset.
func (p *Ports) Validate() error {
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	return nil
}
