package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

// Ensure stores implement the interfaces.
var (
	_ driven.ManifestStore  = (*ManifestStore)(nil)
	_ driven.ThemeStore     = (*ThemeStore)(nil)
	_ driven.ActionStore    = (*ActionStore)(nil)
	_ driven.SynthesisCache = (*SynthesisCache)(nil)
	_ driven.MetricsStore   = (*MetricsStore)(nil)
)

// ManifestStore is an in-memory implementation of driven.ManifestStore.
type ManifestStore struct {
	mu        sync.RWMutex
	manifests map[string]domain.Manifest
}

// NewManifestStore creates a new in-memory manifest store.
func NewManifestStore() *ManifestStore {
	return &ManifestStore{manifests: make(map[string]domain.Manifest)}
}

// CreateManifest inserts a manifest unless one exists for the unit and period.
func (s *ManifestStore) CreateManifest(_ context.Context, m *domain.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.manifests {
		if existing.BusinessUnitID == m.BusinessUnitID && existing.Period == m.Period {
			return domain.ErrAlreadyExists
		}
	}
	s.manifests[m.ID] = *m
	return nil
}

// GetManifest returns the manifest for a unit and period.
func (s *ManifestStore) GetManifest(_ context.Context, businessUnitID, period string) (*domain.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.manifests {
		if m.BusinessUnitID == businessUnitID && m.Period == period {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetManifestByID returns a manifest by ID.
func (s *ManifestStore) GetManifestByID(_ context.Context, id string) (*domain.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

// UpdateManifest replaces a stored manifest.
func (s *ManifestStore) UpdateManifest(_ context.Context, m *domain.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.manifests[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.manifests[m.ID] = *m
	return nil
}

// ListManifests returns manifests, newest period first.
func (s *ManifestStore) ListManifests(_ context.Context, businessUnitID string) ([]domain.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Manifest
	for _, m := range s.manifests {
		if businessUnitID == "" || m.BusinessUnitID == businessUnitID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b domain.Manifest) int {
		if c := cmp.Compare(b.Period, a.Period); c != 0 {
			return c
		}
		return cmp.Compare(a.BusinessUnitID, b.BusinessUnitID)
	})
	return out, nil
}

// ThemeStore is an in-memory implementation of driven.ThemeStore.
type ThemeStore struct {
	mu     sync.RWMutex
	themes map[string]domain.Theme
}

// NewThemeStore creates a new in-memory theme store.
func NewThemeStore() *ThemeStore {
	return &ThemeStore{themes: make(map[string]domain.Theme)}
}

// UpsertTheme inserts or updates on (manifest, cluster), keeping the first ID.
func (s *ThemeStore) UpsertTheme(_ context.Context, t *domain.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.themes {
		if existing.ManifestID == t.ManifestID && existing.ClusterID == t.ClusterID {
			t.ID = id
			t.CreatedAt = existing.CreatedAt
			break
		}
	}
	stored := *t
	stored.EvidenceIDs = slices.Clone(t.EvidenceIDs)
	s.themes[t.ID] = stored
	return nil
}

// GetTheme returns a theme by ID.
func (s *ThemeStore) GetTheme(_ context.Context, id string) (*domain.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

// FindThemeLabel returns the latest theme for a cluster under a prompt version.
func (s *ThemeStore) FindThemeLabel(_ context.Context, clusterID string, promptVersion int) (*domain.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Theme
	for _, t := range s.themes {
		if t.ClusterID != clusterID || t.PromptVersion != promptVersion {
			continue
		}
		if found == nil || t.UpdatedAt.After(found.UpdatedAt) ||
			(t.UpdatedAt.Equal(found.UpdatedAt) && t.ID < found.ID) {
			found = &t
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

// ListThemes returns a manifest's themes ordered by topic key.
func (s *ThemeStore) ListThemes(_ context.Context, manifestID string) ([]domain.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Theme
	for _, t := range s.themes {
		if t.ManifestID == manifestID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.Theme) int { return cmp.Compare(a.TopicKey, b.TopicKey) })
	return out, nil
}

// ActionStore is an in-memory implementation of driven.ActionStore.
type ActionStore struct {
	mu      sync.RWMutex
	actions []domain.Action
}

// NewActionStore creates a new in-memory action store.
func NewActionStore() *ActionStore {
	return &ActionStore{}
}

// InsertActions appends actions whose normalised description is new for the theme.
func (s *ActionStore) InsertActions(_ context.Context, actions []domain.Action) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inserted := 0
	for _, a := range actions {
		if s.exists(a.ThemeID, a.NormalizedDescription) {
			continue
		}
		a.Evidence = slices.Clone(a.Evidence)
		s.actions = append(s.actions, a)
		inserted++
	}
	return inserted, nil
}

func (s *ActionStore) exists(themeID, normalized string) bool {
	for _, a := range s.actions {
		if a.ThemeID == themeID && a.NormalizedDescription == normalized {
			return true
		}
	}
	return false
}

// ListActions returns a theme's actions in insertion order.
func (s *ActionStore) ListActions(_ context.Context, themeID string) ([]domain.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Action
	for _, a := range s.actions {
		if a.ThemeID == themeID {
			out = append(out, a)
		}
	}
	return out, nil
}

// CountActions returns action counts keyed by theme ID.
func (s *ActionStore) CountActions(_ context.Context, themeIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(themeIDs))
	for _, id := range themeIDs {
		out[id] = 0
	}
	for _, a := range s.actions {
		if _, ok := out[a.ThemeID]; ok {
			out[a.ThemeID]++
		}
	}
	return out, nil
}

type synthesisKey struct {
	themeID       string
	promptVersion int
}

// SynthesisCache is an in-memory implementation of driven.SynthesisCache.
type SynthesisCache struct {
	mu      sync.RWMutex
	entries map[synthesisKey]domain.SynthesisCacheEntry
}

// NewSynthesisCache creates a new in-memory synthesis cache.
func NewSynthesisCache() *SynthesisCache {
	return &SynthesisCache{entries: make(map[synthesisKey]domain.SynthesisCacheEntry)}
}

// GetSynthesis returns a cached entry.
func (c *SynthesisCache) GetSynthesis(_ context.Context, themeID string, promptVersion int) (*domain.SynthesisCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[synthesisKey{themeID, promptVersion}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// PutSynthesis upserts an entry.
func (c *SynthesisCache) PutSynthesis(_ context.Context, entry *domain.SynthesisCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[synthesisKey{entry.ThemeID, entry.PromptVersion}] = *entry
	return nil
}

type topicKey struct {
	manifestID string
	topic      string
}

// MetricsStore is an in-memory implementation of driven.MetricsStore.
type MetricsStore struct {
	mu      sync.RWMutex
	metrics map[topicKey]domain.ThemeMetric
	trends  map[topicKey]domain.ThemeTrend
}

// NewMetricsStore creates a new in-memory metrics store.
func NewMetricsStore() *MetricsStore {
	return &MetricsStore{
		metrics: make(map[topicKey]domain.ThemeMetric),
		trends:  make(map[topicKey]domain.ThemeTrend),
	}
}

// UpsertMetrics upserts on (manifest, topic key).
func (s *MetricsStore) UpsertMetrics(_ context.Context, metrics []domain.ThemeMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range metrics {
		s.metrics[topicKey{m.ManifestID, m.TopicKey}] = m
	}
	return nil
}

// ListMetrics returns a manifest's metrics ordered by topic key.
func (s *MetricsStore) ListMetrics(_ context.Context, manifestID string) ([]domain.ThemeMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ThemeMetric
	for k, m := range s.metrics {
		if k.manifestID == manifestID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b domain.ThemeMetric) int { return cmp.Compare(a.TopicKey, b.TopicKey) })
	return out, nil
}

// UpsertTrends upserts on (current manifest, topic key).
func (s *MetricsStore) UpsertTrends(_ context.Context, trends []domain.ThemeTrend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trends {
		s.trends[topicKey{t.CurrentManifestID, t.TopicKey}] = t
	}
	return nil
}

// ListTrends returns a manifest's trends ordered by topic key.
func (s *MetricsStore) ListTrends(_ context.Context, manifestID string) ([]domain.ThemeTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ThemeTrend
	for k, t := range s.trends {
		if k.manifestID == manifestID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.ThemeTrend) int { return cmp.Compare(a.TopicKey, b.TopicKey) })
	return out, nil
}
