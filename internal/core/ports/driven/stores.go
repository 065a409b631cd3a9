package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// ReviewStore persists normalised reviews.
type ReviewStore interface {
	// InsertReviews stores reviews. An ID already stored keeps its first-seen data.
	InsertReviews(ctx context.Context, reviews []domain.Review) error

	// GetReviews returns the reviews with the given IDs. Missing IDs are skipped.
	GetReviews(ctx context.Context, ids []string) ([]domain.Review, error)

	// ListReviews returns a product's reviews dated within [start, end],
	// in canonical order.
	ListReviews(ctx context.Context, productID string, start, end time.Time) ([]domain.Review, error)
}

// EmbeddingCache persists embedding vectors keyed by (body_sha, model).
type EmbeddingCache interface {
	// GetEmbeddings returns cached vectors for the given hashes, keyed by hash.
	// Hashes without an entry are absent from the map.
	GetEmbeddings(ctx context.Context, model string, hashes []string) (map[string][]float64, error)

	// PutEmbeddings upserts records on (body_sha, model).
	PutEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error
}

// ManifestStore persists ingestion manifests.
type ManifestStore interface {
	// CreateManifest inserts a manifest. Returns domain.ErrAlreadyExists when a
	// manifest for the same (business unit, period) exists.
	CreateManifest(ctx context.Context, m *domain.Manifest) error

	// GetManifest returns the manifest for a business unit and period,
	// or domain.ErrNotFound.
	GetManifest(ctx context.Context, businessUnitID, period string) (*domain.Manifest, error)

	// GetManifestByID returns a manifest by ID, or domain.ErrNotFound.
	GetManifestByID(ctx context.Context, id string) (*domain.Manifest, error)

	// UpdateManifest saves status, counts and error text.
	UpdateManifest(ctx context.Context, m *domain.Manifest) error

	// ListManifests returns manifests, newest period first. An empty
	// businessUnitID lists all units.
	ListManifests(ctx context.Context, businessUnitID string) ([]domain.Manifest, error)
}

// ThemeStore persists themes keyed by (manifest_id, cluster_id).
type ThemeStore interface {
	// UpsertTheme inserts or updates a theme. On conflict the existing ID is
	// kept and written back to t.ID.
	UpsertTheme(ctx context.Context, t *domain.Theme) error

	// GetTheme returns a theme by ID, or domain.ErrNotFound.
	GetTheme(ctx context.Context, id string) (*domain.Theme, error)

	// FindThemeLabel returns the most recent theme for a cluster labelled under
	// the given prompt version, or domain.ErrNotFound.
	FindThemeLabel(ctx context.Context, clusterID string, promptVersion int) (*domain.Theme, error)

	// ListThemes returns a manifest's themes ordered by topic key.
	ListThemes(ctx context.Context, manifestID string) ([]domain.Theme, error)
}

// ActionStore persists actions unique per (theme_id, normalized_description).
type ActionStore interface {
	// InsertActions inserts actions, skipping any whose normalised description
	// already exists for the theme. Returns the number inserted.
	InsertActions(ctx context.Context, actions []domain.Action) (int, error)

	// ListActions returns a theme's actions in insertion order.
	ListActions(ctx context.Context, themeID string) ([]domain.Action, error)

	// CountActions returns action counts keyed by theme ID.
	CountActions(ctx context.Context, themeIDs []string) (map[string]int, error)
}

// SynthesisCache persists synthesis results keyed by (theme_id, prompt_version).
type SynthesisCache interface {
	// GetSynthesis returns the cached entry, or domain.ErrNotFound.
	GetSynthesis(ctx context.Context, themeID string, promptVersion int) (*domain.SynthesisCacheEntry, error)

	// PutSynthesis upserts an entry.
	PutSynthesis(ctx context.Context, entry *domain.SynthesisCacheEntry) error
}

// MetricsStore persists per-manifest theme metrics and quarter-over-quarter trends.
type MetricsStore interface {
	// UpsertMetrics upserts on (manifest_id, topic_key).
	UpsertMetrics(ctx context.Context, metrics []domain.ThemeMetric) error

	// ListMetrics returns a manifest's metrics ordered by topic key.
	ListMetrics(ctx context.Context, manifestID string) ([]domain.ThemeMetric, error)

	// UpsertTrends upserts on (current_manifest_id, topic_key).
	UpsertTrends(ctx context.Context, trends []domain.ThemeTrend) error

	// ListTrends returns trends for a manifest ordered by topic key.
	ListTrends(ctx context.Context, manifestID string) ([]domain.ThemeTrend, error)
}
