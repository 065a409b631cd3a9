package services

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/clustering"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEnvironment = "app.environment"

	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDimensions = "embedding.dimensions"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"

	keyAlgorithm      = "pipeline.algorithm"
	keyEps            = "pipeline.eps"
	keyMinPts         = "pipeline.min_pts"
	keyMinClusterSize = "pipeline.min_cluster_size"
	keyIncludeNoise   = "pipeline.include_noise"
	keyEvidenceK      = "pipeline.evidence_k"
	keyPeriodDays     = "pipeline.period_days"
	keyPromptVersion  = "pipeline.prompt_version"
	keyConcurrency    = "pipeline.concurrency"
	keyEmbedBatchSize = "pipeline.embed_batch_size"
	keyDefaultLimit   = "pipeline.default_limit"

	keyRetryAttempts  = "retry.attempts"
	keyRetryBackoffMS = "retry.backoff_ms"

	keyReviewSource      = "reviews.source"
	keyReviewFile        = "reviews.file"
	keyOutscraperAPIKey  = "reviews.outscraper_api_key"
	keyDailyBudget       = "reviews.daily_budget"
	keyRequestsPerSecond = "reviews.requests_per_second"
)

// Environment variables that supply API keys when the config has none.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	envOpenAIKey     = "OPENAI_API_KEY"
	envAnthropicKey  = "ANTHROPIC_API_KEY"
	envGeminiKey     = "GEMINI_API_KEY"
	envOutscraperKey = "OUTSCRAPER_API_KEY"
	envEnvironment   = "REVIEWPULSE_ENV"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()
	dp := defaults.Pipeline

	settings := &domain.AppSettings{
		Environment: s.getString(keyEnvironment, defaults.Environment),
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:      s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.configStore.GetInt(keyEmbedDimensions),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Pipeline: domain.PipelineSettings{
			Algorithm:      s.getAlgorithm(dp.Algorithm),
			Eps:            s.getFloat(keyEps, dp.Eps),
			MinPts:         s.getInt(keyMinPts, dp.MinPts),
			MinClusterSize: s.getInt(keyMinClusterSize, dp.MinClusterSize),
			IncludeNoise:   s.getBool(keyIncludeNoise, dp.IncludeNoise),
			EvidenceK:      s.getInt(keyEvidenceK, dp.EvidenceK),
			PeriodDays:     s.getInt(keyPeriodDays, dp.PeriodDays),
			PromptVersion:  s.getInt(keyPromptVersion, dp.PromptVersion),
			Concurrency:    s.getInt(keyConcurrency, dp.Concurrency),
			EmbedBatchSize: s.getInt(keyEmbedBatchSize, dp.EmbedBatchSize),
			DefaultLimit:   s.getInt(keyDefaultLimit, dp.DefaultLimit),
		},
		Retry: domain.RetrySettings{
			Attempts: s.getInt(keyRetryAttempts, defaults.Retry.Attempts),
			Backoff:  s.getDurationMS(keyRetryBackoffMS, defaults.Retry.Backoff),
		},
		Reviews: domain.ReviewSourceSettings{
			Kind:              s.getSourceKind(defaults.Reviews.Kind),
			FilePath:          s.configStore.GetString(keyReviewFile),
			OutscraperAPIKey:  s.configStore.GetString(keyOutscraperAPIKey),
			DailyBudget:       s.getInt(keyDailyBudget, defaults.Reviews.DailyBudget),
			RequestsPerSecond: s.getFloat(keyRequestsPerSecond, defaults.Reviews.RequestsPerSecond),
		},
	}

	s.applyEnv(settings)
	return settings, nil
}

// applyEnv fills empty API keys from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if env := s.getenv(envEnvironment); env != "" {
		settings.Environment = env
	}
	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envKey(settings.LLM.Provider)
	}
	if settings.Reviews.OutscraperAPIKey == "" {
		settings.Reviews.OutscraperAPIKey = s.getenv(envOutscraperKey)
	}
}

func (s *SettingsService) envKey(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return s.getenv(envOpenAIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(envAnthropicKey)
	case domain.AIProviderGemini:
		return s.getenv(envGeminiKey)
	default:
		return ""
	}
}

// Save persists application settings. API keys taken from the environment
// are written only when the config already held a key.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEnvironment, settings.Environment},

		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},

		{keyAlgorithm, settings.Pipeline.Algorithm.String()},
		{keyEps, settings.Pipeline.Eps},
		{keyMinPts, settings.Pipeline.MinPts},
		{keyMinClusterSize, settings.Pipeline.MinClusterSize},
		{keyIncludeNoise, settings.Pipeline.IncludeNoise},
		{keyEvidenceK, settings.Pipeline.EvidenceK},
		{keyPeriodDays, settings.Pipeline.PeriodDays},
		{keyPromptVersion, settings.Pipeline.PromptVersion},
		{keyConcurrency, settings.Pipeline.Concurrency},
		{keyEmbedBatchSize, settings.Pipeline.EmbedBatchSize},
		{keyDefaultLimit, settings.Pipeline.DefaultLimit},

		{keyRetryAttempts, settings.Retry.Attempts},
		{keyRetryBackoffMS, int(settings.Retry.Backoff / time.Millisecond)},

		{keyReviewSource, string(settings.Reviews.Kind)},
		{keyReviewFile, settings.Reviews.FilePath},
		{keyDailyBudget, settings.Reviews.DailyBudget},
		{keyRequestsPerSecond, settings.Reviews.RequestsPerSecond},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	secrets := []struct {
		key   string
		value string
	}{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyOutscraperAPIKey, settings.Reviews.OutscraperAPIKey},
	}
	for _, sec := range secrets {
		if sec.value == "" || sec.value == s.envSecret(sec.key) {
			continue
		}
		if err := s.configStore.Set(sec.key, sec.value); err != nil {
			return fmt.Errorf("save %s: %w", sec.key, err)
		}
	}

	return nil
}

// envSecret returns the environment value that Get would have substituted
// for key, or "" when the config already holds its own value.
func (s *SettingsService) envSecret(key string) string {
	if s.configStore.GetString(key) != "" {
		return ""
	}
	switch key {
	case keyEmbedAPIKey:
		return s.envKey(s.getProvider(keyEmbedProvider, ""))
	case keyLLMAPIKey:
		return s.envKey(s.getProvider(keyLLMProvider, ""))
	case keyOutscraperAPIKey:
		return s.getenv(envOutscraperKey)
	default:
		return ""
	}
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.envKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	// The cache is keyed by model, so the dimensions follow the model.
	settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.envKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetPipeline validates and stores clustering and evidence settings.
func (s *SettingsService) SetPipeline(pipeline domain.PipelineSettings) error {
	if err := validatePipeline(pipeline); err != nil {
		return err
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Pipeline = pipeline
	return s.Save(settings)
}

// SetReviewSource stores review source settings.
func (s *SettingsService) SetReviewSource(reviews domain.ReviewSourceSettings) error {
	if !reviews.Kind.IsValid() {
		return fmt.Errorf("%w: unknown review source %q", domain.ErrInvalidInput, reviews.Kind)
	}
	if reviews.DailyBudget < 0 || reviews.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: review budget and rate must not be negative", domain.ErrInvalidInput)
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Reviews = reviews
	return s.Save(settings)
}

// Validate checks that the current settings can run ingestion.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: ingestion requires an embedding provider", domain.ErrEmbeddingUnavailable)
	}
	if err := validatePipeline(settings.Pipeline); err != nil {
		return err
	}
	if settings.Retry.Attempts < 1 {
		return fmt.Errorf("%w: retry.attempts must be at least 1", domain.ErrInvalidInput)
	}

	switch settings.Reviews.Kind {
	case domain.ReviewSourceFile:
		if settings.Reviews.FilePath == "" {
			return fmt.Errorf("%w: reviews.file is required for the file source", domain.ErrInvalidInput)
		}
	case domain.ReviewSourceOutscraper:
		if settings.Reviews.OutscraperAPIKey == "" {
			return fmt.Errorf("%w: the outscraper source requires an API key", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown review source %q", domain.ErrInvalidInput, settings.Reviews.Kind)
	}

	return nil
}

func validatePipeline(p domain.PipelineSettings) error {
	if err := clustering.ConfigFromSettings(p).Validate(); err != nil {
		return err
	}
	if p.EvidenceK < 1 || p.PeriodDays < 1 || p.PromptVersion < 1 {
		return fmt.Errorf("%w: evidence_k, period_days and prompt_version must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDurationMS(key string, defaultVal time.Duration) time.Duration {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Millisecond
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getAlgorithm(defaultVal domain.ClusteringAlgorithm) domain.ClusteringAlgorithm {
	algo := domain.ClusteringAlgorithm(s.configStore.GetString(keyAlgorithm))
	if !algo.IsValid() {
		return defaultVal
	}
	return algo
}

func (s *SettingsService) getSourceKind(defaultVal domain.ReviewSourceKind) domain.ReviewSourceKind {
	kind := domain.ReviewSourceKind(s.configStore.GetString(keyReviewSource))
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}
