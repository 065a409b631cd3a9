// Package sqlite provides a SQLite-based implementation of the pipeline's
// driven store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. A single database holds every store:
//
//   - ReviewStore: normalised reviews
//   - EmbeddingCache: vectors keyed by (body_sha, model)
//   - ManifestStore: one manifest per (business unit, period)
//   - ThemeStore: themes keyed by (manifest_id, cluster_id)
//   - ActionStore: actions unique per (theme_id, normalized_description)
//   - SynthesisCache: synthesis payloads keyed by (theme_id, prompt_version)
//   - MetricsStore: theme metrics and quarter-over-quarter trends
//   - UsageStore: daily request counts for metered review sources
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.reviewpulse/data/reviewpulse.db
//
// # Thread Safety
//
// All operations are safe for concurrent use. The store runs SQLite in WAL
// mode with a busy timeout so readers are not blocked by a running ingestion.
package sqlite
