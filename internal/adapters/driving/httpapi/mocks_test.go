package httpapi

import (
	"context"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

type mockIngestionService struct {
	result  *driving.RunResult
	err     error
	lastReq driving.RunRequest
	calls   int
}

func (m *mockIngestionService) Run(_ context.Context, req driving.RunRequest) (*driving.RunResult, error) {
	m.calls++
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

func (m *mockInsightsService) ListManifests(_ context.Context, businessUnitID string) ([]domain.Manifest, error) {
	m.lastArg = businessUnitID
	return m.manifests, m.err
}

func (m *mockInsightsService) ListThemes(_ context.Context, manifestID string) ([]domain.Theme, error) {
	m.lastArg = manifestID
	return m.themes, m.err
}

func (m *mockInsightsService) Metrics(_ context.Context, manifestID string) ([]domain.ThemeMetric, error) {
	m.lastArg = manifestID
	return m.metrics, m.err
}

func (m *mockInsightsService) Trends(_ context.Context, manifestID string) ([]domain.ThemeTrend, error) {
	m.lastArg = manifestID
	return m.trends, m.err
}

func (m *mockInsightsService) Recompute(_ context.Context, manifestID string) (int, int, error) {
	m.lastArg = manifestID
	return len(m.metrics), len(m.trends), m.err
}

type mockActionService struct {
	result  *driving.SynthesisResult
	actions []domain.Action
	err     error
	lastArg string
}

func (m *mockActionService) SynthesizeTheme(_ context.Context, themeID string) (*driving.SynthesisResult, error) {
	m.lastArg = themeID
	return m.result, m.err
}

func (m *mockActionService) ListActions(_ context.Context, themeID string) ([]domain.Action, error) {
	m.lastArg = themeID
	return m.actions, m.err
}
