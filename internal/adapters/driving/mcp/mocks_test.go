package mcp

import (
	"context"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result  *driving.RunResult
	err     error
	lastReq driving.RunRequest
}

func (m *mockIngestionService) Run(_ context.Context, req driving.RunRequest) (*driving.RunResult, error) {
	m.lastReq = req
	return m.result, m.err
}

// mockInsightsService is a mock implementation of driving.InsightsService.
type mockInsightsService struct {
	manifests  []domain.Manifest
	themes     []domain.Theme
	metrics    []domain.ThemeMetric
	trends     []domain.ThemeTrend
	err        error
	trendsErr  error
	lastUnit   string
	lastTarget string
}

func (m *mockInsightsService) ListManifests(_ context.Context, businessUnitID string) ([]domain.Manifest, error) {
	m.lastUnit = businessUnitID
	return m.manifests, m.err
}

func (m *mockInsightsService) ListThemes(_ context.Context, manifestID string) ([]domain.Theme, error) {
	m.lastTarget = manifestID
	return m.themes, m.err
}

func (m *mockInsightsService) Metrics(_ context.Context, manifestID string) ([]domain.ThemeMetric, error) {
	m.lastTarget = manifestID
	return m.metrics, m.err
}

func (m *mockInsightsService) Trends(_ context.Context, _ string) ([]domain.ThemeTrend, error) {
	return m.trends, m.trendsErr
}

func (m *mockInsightsService) Recompute(_ context.Context, _ string) (int, int, error) {
	return len(m.metrics), len(m.trends), m.err
}

// mockActionService is a mock implementation of driving.ActionService.
type mockActionService struct {
	result  *driving.SynthesisResult
	actions []domain.Action
	err     error
}

func (m *mockActionService) SynthesizeTheme(_ context.Context, _ string) (*driving.SynthesisResult, error) {
	return m.result, m.err
}

func (m *mockActionService) ListActions(_ context.Context, _ string) ([]domain.Action, error) {
	return m.actions, m.err
}

func intPtr(v int) *int { return &v }
