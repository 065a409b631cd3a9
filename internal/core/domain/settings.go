package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string

	// Dimensions overrides the model's native output size where supported.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic/Gemini).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// PipelineSettings tunes clustering, evidence selection and generative caching.
type PipelineSettings struct {
	// Algorithm selects DBSCAN or the hierarchical variant.
	Algorithm ClusteringAlgorithm

	// Eps is the DBSCAN neighbourhood radius in cosine distance.
	Eps float64

	// MinPts is the DBSCAN core-point threshold, counting the point itself.
	MinPts int

	// MinClusterSize is the smallest cluster the hierarchical variant keeps.
	MinClusterSize int

	// IncludeNoise emits noise points as singleton clusters.
	IncludeNoise bool

	// EvidenceK is the number of evidence reviews kept per cluster.
	EvidenceK int

	// PeriodDays is the recency decay horizon.
	PeriodDays int

	// PromptVersion keys the theme and synthesis caches; bump to invalidate.
	PromptVersion int

	// Concurrency bounds parallel per-cluster labelling.
	Concurrency int

	// EmbedBatchSize is the number of texts sent per embedding request.
	EmbedBatchSize int

	// DefaultLimit is the review limit when a run does not set one.
	DefaultLimit int
}

// RetrySettings configures the transport retry policy.
type RetrySettings struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Backoff is the fixed delay between tries.
	Backoff time.Duration
}

// ReviewSourceKind selects the review source adapter.
type ReviewSourceKind string

// Review source kinds.
const (
	ReviewSourceFile       ReviewSourceKind = "file"
	ReviewSourceOutscraper ReviewSourceKind = "outscraper"
)

// IsValid returns true if the source kind is recognised.
func (k ReviewSourceKind) IsValid() bool {
	return k == ReviewSourceFile || k == ReviewSourceOutscraper
}

// ReviewSourceSettings configures where reviews come from.
type ReviewSourceSettings struct {
	// Kind selects the adapter.
	Kind ReviewSourceKind

	// FilePath is the JSON file read by the file source.
	FilePath string

	// OutscraperAPIKey authenticates the Outscraper source.
	OutscraperAPIKey string

	// DailyBudget caps Outscraper reviews fetched per UTC day.
	DailyBudget int

	// RequestsPerSecond throttles Outscraper requests.
	RequestsPerSecond float64
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Environment is "production" or anything else. Stack traces are
	// hidden from run errors in production.
	Environment string

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Pipeline holds clustering and evidence settings.
	Pipeline PipelineSettings

	// Retry holds the transport retry policy.
	Retry RetrySettings

	// Reviews holds review source settings.
	Reviews ReviewSourceSettings
}

// IsProduction reports whether the environment is production.
func (s AppSettings) IsProduction() bool {
	return s.Environment == "production"
}

// DefaultPipelineSettings returns the production clustering defaults.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		Algorithm:      ClusteringDBSCAN,
		Eps:            0.12,
		MinPts:         2,
		MinClusterSize: 3,
		IncludeNoise:   false,
		EvidenceK:      5,
		PeriodDays:     90,
		PromptVersion:  1,
		Concurrency:    4,
		EmbedBatchSize: 100,
		DefaultLimit:   12,
	}
}

// DefaultRetrySettings returns the fixed transport retry policy.
func DefaultRetrySettings() RetrySettings {
	return RetrySettings{Attempts: 2, Backoff: 300 * time.Millisecond}
}

// DefaultAppSettings returns settings with sensible defaults.
// AI features (Embedding, LLM) are left unconfigured by default.
// Users must explicitly configure them via settings wizard.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Environment: "development",
		Embedding:   EmbeddingSettings{},
		LLM:         LLMSettings{},
		Pipeline:    DefaultPipelineSettings(),
		Retry:       DefaultRetrySettings(),
		Reviews: ReviewSourceSettings{
			Kind:              ReviewSourceFile,
			DailyBudget:       200,
			RequestsPerSecond: 1,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "gemini-embedding-001",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-haiku-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"gemini-embedding-001": 768,
		"text-embedding-004":   768,
	}
}
