package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

// Ensure ReviewStore implements the interface.
var _ driven.ReviewStore = (*ReviewStore)(nil)

// ReviewStore is an in-memory implementation of driven.ReviewStore.
type ReviewStore struct {
	mu      sync.RWMutex
	reviews map[string]domain.Review
}

// NewReviewStore creates a new in-memory review store.
func NewReviewStore() *ReviewStore {
	return &ReviewStore{reviews: make(map[string]domain.Review)}
}

// InsertReviews stores reviews. An ID already stored keeps its first-seen data.
func (s *ReviewStore) InsertReviews(_ context.Context, reviews []domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range reviews {
		if _, ok := s.reviews[r.ID]; ok {
			continue
		}
		s.reviews[r.ID] = r
	}
	return nil
}

// GetReviews returns reviews by ID in the requested order.
func (s *ReviewStore) GetReviews(_ context.Context, ids []string) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Review, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.reviews[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListReviews returns a product's reviews within [start, end] in canonical order.
func (s *ReviewStore) ListReviews(_ context.Context, productID string, start, end time.Time) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Review
	for _, r := range s.reviews {
		if r.ProductID != productID {
			continue
		}
		d, ok := r.Date()
		if !ok || d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, r)
	}
	domain.SortReviews(out)
	return out, nil
}

// Count returns the number of stored reviews.
func (s *ReviewStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reviews)
}

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

type embeddingKey struct {
	hash  string
	model string
}

// EmbeddingCache is an in-memory implementation of driven.EmbeddingCache.
type EmbeddingCache struct {
	mu      sync.RWMutex
	vectors map[embeddingKey][]float64
}

// NewEmbeddingCache creates a new in-memory embedding cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{vectors: make(map[embeddingKey][]float64)}
}

// GetEmbeddings returns cached vectors keyed by hash.
func (c *EmbeddingCache) GetEmbeddings(_ context.Context, model string, hashes []string) (map[string][]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]float64)
	for _, h := range hashes {
		if v, ok := c.vectors[embeddingKey{h, model}]; ok {
			out[h] = slices.Clone(v)
		}
	}
	return out, nil
}

// PutEmbeddings upserts records.
func (c *EmbeddingCache) PutEmbeddings(_ context.Context, records []domain.EmbeddingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.vectors[embeddingKey{r.BodySHA, r.Model}] = slices.Clone(r.Vector)
	}
	return nil
}

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// Ensure UsageStore implements the interface.
var _ driven.UsageStore = (*UsageStore)(nil)

// UsageStore is an in-memory implementation of driven.UsageStore.
type UsageStore struct {
	mu    sync.Mutex
	usage map[string]int
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{usage: make(map[string]int)}
}

func usageKey(source string, day time.Time) string {
	return source + "|" + day.UTC().Format(domain.ReviewDateLayout)
}

// GetUsage returns the units consumed by source on day.
func (s *UsageStore) GetUsage(_ context.Context, source string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[usageKey(source, day)], nil
}

// AddUsage adds n units and returns the new total.
func (s *UsageStore) AddUsage(_ context.Context, source string, day time.Time, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := usageKey(source, day)
	s.usage[k] += n
	return s.usage[k], nil
}
