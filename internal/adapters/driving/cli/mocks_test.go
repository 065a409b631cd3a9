package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

// ==================== Mocks ====================

type mockIngestionService struct {
	result  *driving.RunResult
	err     error
	lastReq driving.RunRequest
}

func (m *mockIngestionService) Run(_ context.Context, req driving.RunRequest) (*driving.RunResult, error) {
	m.lastReq = req
	return m.result, m.err
}

type mockInsightsService struct {
	manifests []domain.Manifest
	themes    []domain.Theme
	metrics   []domain.ThemeMetric
	trends    []domain.ThemeTrend
	err       error
	lastArg   string
}

func (m *mockInsightsService) ListManifests(_ context.Context, unit string) ([]domain.Manifest, error) {
	m.lastArg = unit
	return m.manifests, m.err
}

func (m *mockInsightsService) ListThemes(_ context.Context, id string) ([]domain.Theme, error) {
	m.lastArg = id
	return m.themes, m.err
}

func (m *mockInsightsService) Metrics(_ context.Context, id string) ([]domain.ThemeMetric, error) {
	m.lastArg = id
	return m.metrics, m.err
}

func (m *mockInsightsService) Trends(_ context.Context, id string) ([]domain.ThemeTrend, error) {
	m.lastArg = id
	return m.trends, m.err
}

func (m *mockInsightsService) Recompute(_ context.Context, id string) (int, int, error) {
	m.lastArg = id
	return len(m.metrics), len(m.trends), m.err
}

type mockActionService struct {
	result  *driving.SynthesisResult
	actions []domain.Action
	err     error
	lastArg string
}

func (m *mockActionService) SynthesizeTheme(_ context.Context, id string) (*driving.SynthesisResult, error) {
	m.lastArg = id
	return m.result, m.err
}

func (m *mockActionService) ListActions(_ context.Context, id string) ([]domain.Action, error) {
	m.lastArg = id
	return m.actions, m.err
}

type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	embedErr    error
	llmErr      error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetPipeline(pipeline domain.PipelineSettings) error {
	m.settings.Pipeline = pipeline
	return nil
}

func (m *mockSettingsService) SetReviewSource(reviews domain.ReviewSourceSettings) error {
	m.settings.Reviews = reviews
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.embedErr
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.llmErr
}

// ==================== Helpers ====================

type testServices struct {
	ingestion *mockIngestionService
	insights  *mockInsightsService
	actions   *mockActionService
	settings  *mockSettingsService
}

// setupTestServices installs mocks and returns them with a cleanup func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingestion: &mockIngestionService{},
		insights:  &mockInsightsService{},
		actions:   &mockActionService{},
		settings:  newMockSettingsService(),
	}
	SetServices(Services{
		Ingestion: ts.ingestion,
		Insights:  ts.insights,
		Actions:   ts.actions,
		Settings:  ts.settings,
	})
	return ts, func() { SetServices(Services{}) }
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}
