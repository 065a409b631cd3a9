package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
	"github.com/custodia-labs/reviewpulse/internal/logger"
)

// Ensure InsightsService implements the interface.
var _ driving.InsightsService = (*InsightsService)(nil)

// InsightsService computes per-manifest theme metrics and compares them with
// the previous quarter for the same business unit.
type InsightsService struct {
	manifests driven.ManifestStore
	themes    driven.ThemeStore
	actions   driven.ActionStore
	metrics   driven.MetricsStore
	now       func() time.Time
}

// NewInsightsService creates a new insights service.
func NewInsightsService(
	manifests driven.ManifestStore,
	themes driven.ThemeStore,
	actions driven.ActionStore,
	metrics driven.MetricsStore,
) *InsightsService {
	return &InsightsService{
		manifests: manifests,
		themes:    themes,
		actions:   actions,
		metrics:   metrics,
		now:       time.Now,
	}
}

// ListManifests returns manifests for a business unit, or all when empty.
func (s *InsightsService) ListManifests(ctx context.Context, businessUnitID string) ([]domain.Manifest, error) {
	return s.manifests.ListManifests(ctx, businessUnitID)
}

// ListThemes returns the themes recorded for a manifest.
func (s *InsightsService) ListThemes(ctx context.Context, manifestID string) ([]domain.Theme, error) {
	return s.themes.ListThemes(ctx, manifestID)
}

// Metrics returns the theme metrics for a manifest.
func (s *InsightsService) Metrics(ctx context.Context, manifestID string) ([]domain.ThemeMetric, error) {
	return s.metrics.ListMetrics(ctx, manifestID)
}

// Trends returns the quarter-over-quarter trends for a manifest.
func (s *InsightsService) Trends(ctx context.Context, manifestID string) ([]domain.ThemeTrend, error) {
	return s.metrics.ListTrends(ctx, manifestID)
}

// Recompute rebuilds metrics then trends for a manifest.
func (s *InsightsService) Recompute(ctx context.Context, manifestID string) (int, int, error) {
	m, err := s.ComputeMetrics(ctx, manifestID)
	if err != nil {
		return 0, 0, err
	}
	t, err := s.ComputeTrends(ctx, manifestID)
	if err != nil {
		return m, 0, err
	}
	return m, t, nil
}

// ComputeMetrics snapshots each theme of the manifest with its action count.
func (s *InsightsService) ComputeMetrics(ctx context.Context, manifestID string) (int, error) {
	themes, err := s.themes.ListThemes(ctx, manifestID)
	if err != nil {
		return 0, fmt.Errorf("list themes: %w", err)
	}
	if len(themes) == 0 {
		return 0, nil
	}

	ids := make([]string, len(themes))
	for i, t := range themes {
		ids[i] = t.ID
	}
	counts, err := s.actions.CountActions(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}

	now := s.now().UTC()
	rows := make([]domain.ThemeMetric, len(themes))
	for i, t := range themes {
		rows[i] = domain.ThemeMetric{
			ManifestID:    manifestID,
			TopicKey:      t.TopicKey,
			ClusterID:     t.ClusterID,
			Name:          t.Name,
			Severity:      t.Severity,
			EvidenceCount: t.EvidenceCount,
			ReviewCount:   t.ReviewCount,
			ActionsCount:  counts[t.ID],
			ComputedAt:    now,
		}
	}
	if err := s.metrics.UpsertMetrics(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert metrics: %w", err)
	}
	logger.Debug("Computed %d theme metrics for manifest %s", len(rows), manifestID)
	return len(rows), nil
}

// ComputeTrends compares the manifest's metrics with the previous quarter's
// manifest for the same business unit. Topics missing last quarter get no
// previous side and no deltas.
func (s *InsightsService) ComputeTrends(ctx context.Context, manifestID string) (int, error) {
	current, err := s.manifests.GetManifestByID(ctx, manifestID)
	if err != nil {
		return 0, fmt.Errorf("get manifest %s: %w", manifestID, err)
	}
	quarter, err := domain.ParseQuarter(current.Period)
	if err != nil {
		return 0, err
	}

	prevMetrics := map[string]domain.ThemeMetric{}
	prevID := ""
	prev, err := s.manifests.GetManifest(ctx, current.BusinessUnitID, quarter.Prev().String())
	switch {
	case err == nil:
		prevID = prev.ID
		rows, err := s.metrics.ListMetrics(ctx, prev.ID)
		if err != nil {
			return 0, fmt.Errorf("list previous metrics: %w", err)
		}
		for _, r := range rows {
			prevMetrics[r.TopicKey] = r
		}
	case !errors.Is(err, domain.ErrNotFound):
		return 0, fmt.Errorf("get previous manifest: %w", err)
	}

	cur, err := s.metrics.ListMetrics(ctx, manifestID)
	if err != nil {
		return 0, fmt.Errorf("list metrics: %w", err)
	}

	now := s.now().UTC()
	trends := make([]domain.ThemeTrend, 0, len(cur))
	for _, c := range cur {
		var p *domain.ThemeMetric
		if m, ok := prevMetrics[c.TopicKey]; ok {
			p = &m
		}
		t := domain.NewThemeTrend(c, p)
		t.PrevManifestID = prevID
		t.BusinessUnitID = current.BusinessUnitID
		t.ComputedAt = now
		trends = append(trends, t)
	}
	if len(trends) == 0 {
		return 0, nil
	}
	if err := s.metrics.UpsertTrends(ctx, trends); err != nil {
		return 0, fmt.Errorf("upsert trends: %w", err)
	}
	return len(trends), nil
}
