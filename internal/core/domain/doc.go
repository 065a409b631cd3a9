// Package domain defines the core business entities for reviewpulse.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Review: A normalised customer review with its content hash
//   - EmbeddingRecord: A cached embedding vector keyed by content hash and model
//   - Cluster: A density cluster of reviews with a centroid-derived identifier
//   - Theme: A labelled cluster persisted per manifest
//   - Action: A recommended product or go-to-market action for a theme
//   - Manifest: One ingestion run for a business unit and period
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
