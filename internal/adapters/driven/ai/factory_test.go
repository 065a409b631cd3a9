package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	assert.NotPanics(t, result.Close)
}

// ollamaServer answers the connectivity probe with the given status.
func ollamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		model    string
		dims     int
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "unconfigured settings", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name:     "anthropic is not an embedding provider",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"},
			wantNil:  true,
		},
		{
			name:     "unknown provider",
			settings: &domain.EmbeddingSettings{Provider: "unknown", APIKey: "k"},
			wantNil:  true,
		},
		{
			name:     "missing key",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name: "ollama",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
			model: "nomic-embed-text",
			dims:  768,
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
			model: "text-embedding-3-small",
			dims:  1536,
		},
		{
			name: "openai with shortened dimensions",
			settings: &domain.EmbeddingSettings{
				Provider:   domain.AIProviderOpenAI,
				APIKey:     "test-key",
				Model:      "text-embedding-3-large",
				Dimensions: 256,
			},
			model: "text-embedding-3-large",
			dims:  256,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(context.Background(), tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.model, svc.ModelName())
			assert.Equal(t, tt.dims, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
		model    string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "unconfigured settings", settings: &domain.LLMSettings{}, wantNil: true},
		{
			name:     "unknown provider",
			settings: &domain.LLMSettings{Provider: "unknown", APIKey: "k"},
			wantNil:  true,
		},
		{
			name:     "ollama",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
			model:    "llama3.2",
		},
		{
			name:     "openai",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
			model:    "gpt-4o-mini",
		},
		{
			name: "anthropic",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic,
				APIKey:   "k",
				Model:    "claude-3-5-haiku-latest",
			},
			model: "claude-3-5-haiku-latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(context.Background(), tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			defer svc.Close()
			assert.Equal(t, tt.model, svc.ModelName())
		})
	}
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusOK)
		svc, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		require.NoError(t, err)
		require.NotNil(t, svc)
		svc.Close()
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusServiceUnavailable)
		svc, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, err.Error(), "reviewpulse settings")
	})

	t.Run("unconfigured", func(t *testing.T) {
		svc, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{})
		require.NoError(t, err)
		assert.Nil(t, svc)
	})
}

func TestCreateAndValidateLLMService(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusOK)
		svc, err := CreateAndValidateLLMService(context.Background(), &domain.LLMSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		require.NoError(t, err)
		require.NotNil(t, svc)
		svc.Close()
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := ollamaServer(t, http.StatusInternalServerError)
		_, err := CreateAndValidateLLMService(context.Background(), &domain.LLMSettings{
			Provider: domain.AIProviderOllama,
			BaseURL:  srv.URL,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}

func TestInitialise(t *testing.T) {
	t.Run("embedding required", func(t *testing.T) {
		_, err := Initialise(context.Background(), domain.DefaultAppSettings())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("unreachable llm is dropped with a warning", func(t *testing.T) {
		ok := ollamaServer(t, http.StatusOK)
		down := ollamaServer(t, http.StatusServiceUnavailable)

		settings := domain.DefaultAppSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: ok.URL}
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: down.URL}

		result, err := Initialise(context.Background(), settings)
		require.NoError(t, err)
		defer result.Close()
		assert.NotNil(t, result.EmbeddingService)
		assert.Nil(t, result.LLMService)
		require.Len(t, result.Warnings, 1)
	})

	t.Run("both services", func(t *testing.T) {
		ok := ollamaServer(t, http.StatusOK)
		settings := domain.DefaultAppSettings()
		settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: ok.URL}
		settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: ok.URL}

		result, err := Initialise(context.Background(), settings)
		require.NoError(t, err)
		defer result.Close()
		assert.NotNil(t, result.LLMService)
		assert.Empty(t, result.Warnings)
	})
}
