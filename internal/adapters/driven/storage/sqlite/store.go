package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all pipeline store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.reviewpulse/data/reviewpulse.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".reviewpulse", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "reviewpulse.db")

	// WAL lets the HTTP server read while a run writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ReviewStore returns a ReviewStore backed by this store.
func (s *Store) ReviewStore() driven.ReviewStore {
	return &reviewStore{store: s}
}

// EmbeddingCache returns an EmbeddingCache backed by this store.
func (s *Store) EmbeddingCache() driven.EmbeddingCache {
	return &embeddingCache{store: s}
}

// ManifestStore returns a ManifestStore backed by this store.
func (s *Store) ManifestStore() driven.ManifestStore {
	return &manifestStore{store: s}
}

// ThemeStore returns a ThemeStore backed by this store.
func (s *Store) ThemeStore() driven.ThemeStore {
	return &themeStore{store: s}
}

// ActionStore returns an ActionStore backed by this store.
func (s *Store) ActionStore() driven.ActionStore {
	return &actionStore{store: s}
}

// SynthesisCache returns a SynthesisCache backed by this store.
func (s *Store) SynthesisCache() driven.SynthesisCache {
	return &synthesisCache{store: s}
}

// MetricsStore returns a MetricsStore backed by this store.
func (s *Store) MetricsStore() driven.MetricsStore {
	return &metricsStore{store: s}
}

// UsageStore returns a UsageStore backed by this store.
func (s *Store) UsageStore() driven.UsageStore {
	return &usageStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// inTx runs fn inside a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ==================== Review Store ====================

type reviewStore struct {
	store *Store
}

var _ driven.ReviewStore = (*reviewStore)(nil)

const reviewColumns = `id, product_id, body, review_date, normalized_body, body_sha,
	rating, source_url, severity, created_at`

// InsertReviews stores reviews. Reviews are immutable: a row that already
// exists for an ID keeps its first-seen data.
func (s *reviewStore) InsertReviews(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	now := time.Now().UTC()

	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO reviews (`+reviewColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("preparing review insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range reviews {
			createdAt := r.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			if _, err := stmt.ExecContext(ctx, r.ID, r.ProductID, r.Body, r.ReviewDate,
				r.NormalizedBody, r.BodySHA, nullInt(r.Rating), r.SourceURL, string(r.Severity),
				createdAt.UTC()); err != nil {
				return fmt.Errorf("upserting review %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// GetReviews returns reviews by ID in the requested order.
func (s *reviewStore) GetReviews(ctx context.Context, ids []string) ([]domain.Review, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	found, err := scanReviews(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Review, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	out := make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListReviews returns a product's reviews dated within [start, end].
func (s *reviewStore) ListReviews(
	ctx context.Context, productID string, start, end time.Time,
) ([]domain.Review, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE product_id = ? AND substr(review_date, 1, 10) BETWEEN ? AND ?
		ORDER BY product_id, review_date, id
	`, productID, start.UTC().Format(domain.ReviewDateLayout), end.UTC().Format(domain.ReviewDateLayout))
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	return scanReviews(rows)
}

func scanReviews(rows *sql.Rows) ([]domain.Review, error) {
	defer rows.Close()

	var reviews []domain.Review //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.Review
		var rating sql.NullInt64
		var severity string
		var createdAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.ProductID, &r.Body, &r.ReviewDate, &r.NormalizedBody,
			&r.BodySHA, &rating, &r.SourceURL, &severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		if rating.Valid {
			v := int(rating.Int64)
			r.Rating = &v
		}
		r.Severity = domain.Severity(severity)
		r.CreatedAt = timeOf(createdAt)
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reviews: %w", err)
	}
	return reviews, nil
}

// ==================== Embedding Cache ====================

type embeddingCache struct {
	store *Store
}

var _ driven.EmbeddingCache = (*embeddingCache)(nil)

// GetEmbeddings returns cached vectors for the given hashes, keyed by hash.
func (s *embeddingCache) GetEmbeddings(
	ctx context.Context, model string, hashes []string,
) (map[string][]float64, error) {
	out := make(map[string][]float64, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	args := append([]any{model}, stringArgs(hashes)...)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT body_sha, dims, vector FROM embeddings
		WHERE model = ? AND body_sha IN (`+placeholders(len(hashes))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sha string
		var dims int
		var blob []byte
		if err := rows.Scan(&sha, &dims, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec := bytesToFloat64Slice(blob)
		if len(vec) != dims {
			return nil, fmt.Errorf("%w: embedding %s stored %d of %d dimensions",
				domain.ErrPrecondition, sha, len(vec), dims)
		}
		out[sha] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return out, nil
}

// PutEmbeddings upserts records on (body_sha, model).
func (s *embeddingCache) PutEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()

	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO embeddings (body_sha, model, dims, vector, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(body_sha, model) DO UPDATE SET
				dims = excluded.dims,
				vector = excluded.vector
		`)
		if err != nil {
			return fmt.Errorf("preparing embedding upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			createdAt := r.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			if _, err := stmt.ExecContext(ctx, r.BodySHA, r.Model, len(r.Vector),
				float64SliceToBytes(r.Vector), createdAt.UTC()); err != nil {
				return fmt.Errorf("upserting embedding %s: %w", r.BodySHA, err)
			}
		}
		return nil
	})
}

// ==================== Usage Store ====================

type usageStore struct {
	store *Store
}

var _ driven.UsageStore = (*usageStore)(nil)

// GetUsage returns the units consumed by source on day.
func (s *usageStore) GetUsage(ctx context.Context, source string, day time.Time) (int, error) {
	var units int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT units FROM source_usage WHERE source = ? AND day = ?",
		source, day.UTC().Format(domain.ReviewDateLayout)).Scan(&units)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	return units, nil
}

// AddUsage adds n units and returns the new total.
func (s *usageStore) AddUsage(ctx context.Context, source string, day time.Time, n int) (int, error) {
	var units int
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO source_usage (source, day, units) VALUES (?, ?, ?)
		ON CONFLICT(source, day) DO UPDATE SET units = units + excluded.units
		RETURNING units
	`, source, day.UTC().Format(domain.ReviewDateLayout), n).Scan(&units)
	if err != nil {
		return 0, fmt.Errorf("recording usage: %w", err)
	}
	return units, nil
}

// ==================== Helpers ====================

// float64SliceToBytes encodes a vector as little-endian IEEE 754 doubles.
func float64SliceToBytes(floats []float64) []byte {
	buf := make([]byte, len(floats)*8)
	for i, f := range floats {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func bytesToFloat64Slice(data []byte) []float64 {
	floats := make([]float64, len(data)/8)
	for i := range floats {
		floats[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return floats
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timeOf(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeStrings reads a JSON string array; empty input is an empty slice.
func decodeStrings(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
