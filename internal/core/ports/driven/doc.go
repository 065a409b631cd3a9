// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for ingestion to run:
//
//   - ReviewSource: Fetches raw reviews for a business unit and date range
//   - ReviewNormaliser: Canonicalises raw reviews and computes content hashes
//   - EmbeddingService: Generates vector embeddings for review bodies
//   - ReviewStore, EmbeddingCache, ManifestStore, ThemeStore, ActionStore,
//     SynthesisCache, MetricsStore: Persistence with upsert semantics
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Without it, themes get deterministic fallback labels and
//     action synthesis is skipped.
//   - PromptStore: Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
