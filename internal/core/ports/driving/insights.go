package driving

import (
	"context"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// InsightsService exposes per-manifest metrics and quarter-over-quarter trends.
type InsightsService interface {
	// ListManifests returns manifests for a business unit, or all when empty.
	ListManifests(ctx context.Context, businessUnitID string) ([]domain.Manifest, error)

	// ListThemes returns the themes recorded for a manifest.
	ListThemes(ctx context.Context, manifestID string) ([]domain.Theme, error)

	// Metrics returns the theme metrics for a manifest.
	Metrics(ctx context.Context, manifestID string) ([]domain.ThemeMetric, error)

	// Trends returns the quarter-over-quarter trends for a manifest.
	Trends(ctx context.Context, manifestID string) ([]domain.ThemeTrend, error)

	// Recompute rebuilds metrics and trends for a manifest and returns how
	// many rows of each were written.
	Recompute(ctx context.Context, manifestID string) (metrics int, trends int, err error)
}
