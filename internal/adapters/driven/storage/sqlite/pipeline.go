package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

// ==================== Manifest Store ====================

type manifestStore struct {
	store *Store
}

var _ driven.ManifestStore = (*manifestStore)(nil)

const manifestColumns = `id, business_unit_id, period, start_date, end_date, pipeline_version,
	status, error, review_count, theme_count, created_at, completed_at`

// CreateManifest inserts a manifest; the (business unit, period) unique key
// turns a duplicate into domain.ErrAlreadyExists.
func (s *manifestStore) CreateManifest(ctx context.Context, m *domain.Manifest) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO manifests (`+manifestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.BusinessUnitID, m.Period, m.StartDate.UTC(), m.EndDate.UTC(), m.PipelineVersion,
		string(m.Status), m.Error, m.ReviewCount, m.ThemeCount, m.CreatedAt.UTC(), nullTime(m.CompletedAt))
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("inserting manifest: %w", err)
	}
	return nil
}

// GetManifest returns the manifest for a business unit and period.
func (s *manifestStore) GetManifest(ctx context.Context, businessUnitID, period string) (*domain.Manifest, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+manifestColumns+` FROM manifests WHERE business_unit_id = ? AND period = ?`,
		businessUnitID, period)
	return scanManifest(row)
}

// GetManifestByID returns a manifest by ID.
func (s *manifestStore) GetManifestByID(ctx context.Context, id string) (*domain.Manifest, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+manifestColumns+` FROM manifests WHERE id = ?`, id)
	return scanManifest(row)
}

// UpdateManifest saves status, counts and error text.
func (s *manifestStore) UpdateManifest(ctx context.Context, m *domain.Manifest) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE manifests SET status = ?, error = ?, review_count = ?, theme_count = ?, completed_at = ?
		WHERE id = ?
	`, string(m.Status), m.Error, m.ReviewCount, m.ThemeCount, nullTime(m.CompletedAt), m.ID)
	if err != nil {
		return fmt.Errorf("updating manifest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListManifests returns manifests, newest period first.
func (s *manifestStore) ListManifests(ctx context.Context, businessUnitID string) ([]domain.Manifest, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+manifestColumns+` FROM manifests
		WHERE ? = '' OR business_unit_id = ?
		ORDER BY period DESC, business_unit_id
	`, businessUnitID, businessUnitID)
	if err != nil {
		return nil, fmt.Errorf("querying manifests: %w", err)
	}
	defer rows.Close()

	var manifests []domain.Manifest //nolint:prealloc // size unknown from query
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating manifests: %w", err)
	}
	return manifests, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanManifest(row scanner) (*domain.Manifest, error) {
	var m domain.Manifest
	var status string
	var start, end, createdAt, completedAt sql.NullTime
	if err := row.Scan(&m.ID, &m.BusinessUnitID, &m.Period, &start, &end, &m.PipelineVersion,
		&status, &m.Error, &m.ReviewCount, &m.ThemeCount, &createdAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning manifest: %w", err)
	}
	m.Status = domain.ManifestStatus(status)
	m.StartDate = timeOf(start)
	m.EndDate = timeOf(end)
	m.CreatedAt = timeOf(createdAt)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		m.CompletedAt = &t
	}
	return &m, nil
}

// ==================== Theme Store ====================

type themeStore struct {
	store *Store
}

var _ driven.ThemeStore = (*themeStore)(nil)

const themeColumns = `id, manifest_id, product_id, cluster_id, topic_key, prompt_version, name,
	summary, severity, evidence_ids, evidence_count, review_count, created_at, updated_at`

// UpsertTheme inserts or updates on (manifest_id, cluster_id). The stored ID
// and creation time win and are written back to t.
func (s *themeStore) UpsertTheme(ctx context.Context, t *domain.Theme) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	evidence, err := encodeJSON(nonNil(t.EvidenceIDs))
	if err != nil {
		return fmt.Errorf("encoding evidence ids: %w", err)
	}

	var createdAt sql.NullTime
	err = s.store.db.QueryRowContext(ctx, `
		INSERT INTO themes (`+themeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(manifest_id, cluster_id) DO UPDATE SET
			product_id = excluded.product_id,
			topic_key = excluded.topic_key,
			prompt_version = excluded.prompt_version,
			name = excluded.name,
			summary = excluded.summary,
			severity = excluded.severity,
			evidence_ids = excluded.evidence_ids,
			evidence_count = excluded.evidence_count,
			review_count = excluded.review_count,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, t.ID, t.ManifestID, t.ProductID, t.ClusterID, t.TopicKey, t.PromptVersion, t.Name,
		t.Summary, string(t.Severity), evidence, t.EvidenceCount, t.ReviewCount,
		t.CreatedAt.UTC(), t.UpdatedAt).Scan(&t.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("upserting theme: %w", err)
	}
	t.CreatedAt = timeOf(createdAt)
	return nil
}

// GetTheme returns a theme by ID.
func (s *themeStore) GetTheme(ctx context.Context, id string) (*domain.Theme, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+themeColumns+` FROM themes WHERE id = ?`, id)
	return scanTheme(row)
}

// FindThemeLabel returns the latest theme for a cluster under a prompt version.
func (s *themeStore) FindThemeLabel(ctx context.Context, clusterID string, promptVersion int) (*domain.Theme, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+themeColumns+` FROM themes
		WHERE cluster_id = ? AND prompt_version = ?
		ORDER BY updated_at DESC, id
		LIMIT 1
	`, clusterID, promptVersion)
	return scanTheme(row)
}

// ListThemes returns a manifest's themes ordered by topic key.
func (s *themeStore) ListThemes(ctx context.Context, manifestID string) ([]domain.Theme, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+themeColumns+` FROM themes WHERE manifest_id = ? ORDER BY topic_key, id`, manifestID)
	if err != nil {
		return nil, fmt.Errorf("querying themes: %w", err)
	}
	defer rows.Close()

	var themes []domain.Theme //nolint:prealloc // size unknown from query
	for rows.Next() {
		t, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating themes: %w", err)
	}
	return themes, nil
}

func scanTheme(row scanner) (*domain.Theme, error) {
	var t domain.Theme
	var severity, evidence string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&t.ID, &t.ManifestID, &t.ProductID, &t.ClusterID, &t.TopicKey, &t.PromptVersion,
		&t.Name, &t.Summary, &severity, &evidence, &t.EvidenceCount, &t.ReviewCount,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning theme: %w", err)
	}
	ids, err := decodeStrings(evidence)
	if err != nil {
		return nil, fmt.Errorf("decoding evidence ids: %w", err)
	}
	t.EvidenceIDs = ids
	t.Severity = domain.Severity(severity)
	t.CreatedAt = timeOf(createdAt)
	t.UpdatedAt = timeOf(updatedAt)
	return &t, nil
}

// ==================== Action Store ====================

type actionStore struct {
	store *Store
}

var _ driven.ActionStore = (*actionStore)(nil)

// InsertActions inserts actions, skipping duplicates of
// (theme_id, normalized_description). Returns the number inserted.
func (s *actionStore) InsertActions(ctx context.Context, actions []domain.Action) (int, error) {
	if len(actions) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	inserted := 0

	err := s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO actions (id, theme_id, kind, description, normalized_description,
				impact, effort, evidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(theme_id, normalized_description) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("preparing action insert: %w", err)
		}
		defer stmt.Close()

		for _, a := range actions {
			evidence, err := encodeJSON(nonNil(a.Evidence))
			if err != nil {
				return fmt.Errorf("encoding action evidence: %w", err)
			}
			createdAt := a.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			res, err := stmt.ExecContext(ctx, a.ID, a.ThemeID, string(a.Kind), a.Description,
				a.NormalizedDescription, a.Impact, a.Effort, evidence, createdAt.UTC())
			if err != nil {
				return fmt.Errorf("inserting action: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListActions returns a theme's actions in insertion order.
func (s *actionStore) ListActions(ctx context.Context, themeID string) ([]domain.Action, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, theme_id, kind, description, normalized_description, impact, effort, evidence, created_at
		FROM actions WHERE theme_id = ? ORDER BY seq
	`, themeID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.Action //nolint:prealloc // size unknown from query
	for rows.Next() {
		var a domain.Action
		var kind, evidence string
		var createdAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.ThemeID, &kind, &a.Description, &a.NormalizedDescription,
			&a.Impact, &a.Effort, &evidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		ids, err := decodeStrings(evidence)
		if err != nil {
			return nil, fmt.Errorf("decoding action evidence: %w", err)
		}
		a.Kind = domain.ActionKind(kind)
		a.Evidence = ids
		a.CreatedAt = timeOf(createdAt)
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}
	return actions, nil
}

// CountActions returns action counts keyed by theme ID. Every requested ID
// is present in the result.
func (s *actionStore) CountActions(ctx context.Context, themeIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(themeIDs))
	if len(themeIDs) == 0 {
		return out, nil
	}
	for _, id := range themeIDs {
		out[id] = 0
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT theme_id, COUNT(*) FROM actions
		WHERE theme_id IN (`+placeholders(len(themeIDs))+`)
		GROUP BY theme_id
	`, stringArgs(themeIDs)...)
	if err != nil {
		return nil, fmt.Errorf("counting actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scanning action count: %w", err)
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action counts: %w", err)
	}
	return out, nil
}

// ==================== Synthesis Cache ====================

type synthesisCache struct {
	store *Store
}

var _ driven.SynthesisCache = (*synthesisCache)(nil)

// GetSynthesis returns the cached entry, or domain.ErrNotFound.
func (s *synthesisCache) GetSynthesis(
	ctx context.Context, themeID string, promptVersion int,
) (*domain.SynthesisCacheEntry, error) {
	var payload string
	var createdAt sql.NullTime
	err := s.store.db.QueryRowContext(ctx, `
		SELECT payload, created_at FROM synthesis_cache WHERE theme_id = ? AND prompt_version = ?
	`, themeID, promptVersion).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading synthesis cache: %w", err)
	}

	entry := &domain.SynthesisCacheEntry{
		ThemeID:       themeID,
		PromptVersion: promptVersion,
		CreatedAt:     timeOf(createdAt),
	}
	if err := json.Unmarshal([]byte(payload), &entry.Synthesis); err != nil {
		return nil, fmt.Errorf("decoding synthesis: %w", err)
	}
	return entry, nil
}

// PutSynthesis upserts an entry.
func (s *synthesisCache) PutSynthesis(ctx context.Context, entry *domain.SynthesisCacheEntry) error {
	payload, err := encodeJSON(entry.Synthesis)
	if err != nil {
		return fmt.Errorf("encoding synthesis: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO synthesis_cache (theme_id, prompt_version, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(theme_id, prompt_version) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, entry.ThemeID, entry.PromptVersion, payload, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("writing synthesis cache: %w", err)
	}
	return nil
}

// ==================== Metrics Store ====================

type metricsStore struct {
	store *Store
}

var _ driven.MetricsStore = (*metricsStore)(nil)

// UpsertMetrics upserts on (manifest_id, topic_key).
func (s *metricsStore) UpsertMetrics(ctx context.Context, metrics []domain.ThemeMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO theme_metrics (manifest_id, topic_key, cluster_id, name, severity,
				evidence_count, review_count, actions_count, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(manifest_id, topic_key) DO UPDATE SET
				cluster_id = excluded.cluster_id,
				name = excluded.name,
				severity = excluded.severity,
				evidence_count = excluded.evidence_count,
				review_count = excluded.review_count,
				actions_count = excluded.actions_count,
				computed_at = excluded.computed_at
		`)
		if err != nil {
			return fmt.Errorf("preparing metric upsert: %w", err)
		}
		defer stmt.Close()

		for _, m := range metrics {
			if _, err := stmt.ExecContext(ctx, m.ManifestID, m.TopicKey, m.ClusterID, m.Name,
				string(m.Severity), m.EvidenceCount, m.ReviewCount, m.ActionsCount,
				m.ComputedAt.UTC()); err != nil {
				return fmt.Errorf("upserting metric %s: %w", m.TopicKey, err)
			}
		}
		return nil
	})
}

// ListMetrics returns a manifest's metrics ordered by topic key.
func (s *metricsStore) ListMetrics(ctx context.Context, manifestID string) ([]domain.ThemeMetric, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT manifest_id, topic_key, cluster_id, name, severity,
			evidence_count, review_count, actions_count, computed_at
		FROM theme_metrics WHERE manifest_id = ? ORDER BY topic_key
	`, manifestID)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.ThemeMetric //nolint:prealloc // size unknown from query
	for rows.Next() {
		var m domain.ThemeMetric
		var severity string
		var computedAt sql.NullTime
		if err := rows.Scan(&m.ManifestID, &m.TopicKey, &m.ClusterID, &m.Name, &severity,
			&m.EvidenceCount, &m.ReviewCount, &m.ActionsCount, &computedAt); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		m.Severity = domain.Severity(severity)
		m.ComputedAt = timeOf(computedAt)
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metrics: %w", err)
	}
	return metrics, nil
}

// UpsertTrends upserts on (current_manifest_id, topic_key).
func (s *metricsStore) UpsertTrends(ctx context.Context, trends []domain.ThemeTrend) error {
	if len(trends) == 0 {
		return nil
	}
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO theme_trends (current_manifest_id, topic_key, prev_manifest_id, business_unit_id,
				current_side, prev_side, deltas, computed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(current_manifest_id, topic_key) DO UPDATE SET
				prev_manifest_id = excluded.prev_manifest_id,
				business_unit_id = excluded.business_unit_id,
				current_side = excluded.current_side,
				prev_side = excluded.prev_side,
				deltas = excluded.deltas,
				computed_at = excluded.computed_at
		`)
		if err != nil {
			return fmt.Errorf("preparing trend upsert: %w", err)
		}
		defer stmt.Close()

		for _, t := range trends {
			current, err := encodeJSON(t.Current)
			if err != nil {
				return fmt.Errorf("encoding trend: %w", err)
			}
			prev, err := nullJSON(t.Prev)
			if err != nil {
				return fmt.Errorf("encoding trend: %w", err)
			}
			deltas, err := nullJSON(t.Deltas)
			if err != nil {
				return fmt.Errorf("encoding trend: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, t.CurrentManifestID, t.TopicKey, t.PrevManifestID,
				t.BusinessUnitID, current, prev, deltas, t.ComputedAt.UTC()); err != nil {
				return fmt.Errorf("upserting trend %s: %w", t.TopicKey, err)
			}
		}
		return nil
	})
}

// ListTrends returns a manifest's trends ordered by topic key.
func (s *metricsStore) ListTrends(ctx context.Context, manifestID string) ([]domain.ThemeTrend, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT current_manifest_id, topic_key, prev_manifest_id, business_unit_id,
			current_side, prev_side, deltas, computed_at
		FROM theme_trends WHERE current_manifest_id = ? ORDER BY topic_key
	`, manifestID)
	if err != nil {
		return nil, fmt.Errorf("querying trends: %w", err)
	}
	defer rows.Close()

	var trends []domain.ThemeTrend //nolint:prealloc // size unknown from query
	for rows.Next() {
		var t domain.ThemeTrend
		var current string
		var prev, deltas sql.NullString
		var computedAt sql.NullTime
		if err := rows.Scan(&t.CurrentManifestID, &t.TopicKey, &t.PrevManifestID, &t.BusinessUnitID,
			&current, &prev, &deltas, &computedAt); err != nil {
			return nil, fmt.Errorf("scanning trend: %w", err)
		}
		if err := json.Unmarshal([]byte(current), &t.Current); err != nil {
			return nil, fmt.Errorf("decoding trend: %w", err)
		}
		if prev.Valid {
			t.Prev = &domain.TrendSide{}
			if err := json.Unmarshal([]byte(prev.String), t.Prev); err != nil {
				return nil, fmt.Errorf("decoding trend: %w", err)
			}
		}
		if deltas.Valid {
			t.Deltas = &domain.TrendDelta{}
			if err := json.Unmarshal([]byte(deltas.String), t.Deltas); err != nil {
				return nil, fmt.Errorf("decoding trend: %w", err)
			}
		}
		t.ComputedAt = timeOf(computedAt)
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trends: %w", err)
	}
	return trends, nil
}

// nullJSON encodes v, or returns NULL for a nil pointer.
func nullJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, err := encodeJSON(v)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
