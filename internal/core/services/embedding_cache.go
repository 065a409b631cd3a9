package services

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
)

// DefaultEmbedBatchSize is the number of texts sent per provider request.
const DefaultEmbedBatchSize = 100

// EmbeddingResult holds vectors aligned to the input order.
type EmbeddingResult struct {
	Vectors [][]float64
	Model   string

	// Hits and Misses count distinct body hashes.
	Hits   int
	Misses int
}

// EmbeddingCacheManager serves embeddings from the cache and computes
// only the missing ones. Each distinct body hash reaches the provider at
// most once per call.
type EmbeddingCacheManager struct {
	provider  driven.EmbeddingService
	cache     driven.EmbeddingCache
	retrier   *Retrier
	batchSize int
	now       func() time.Time
}

// NewEmbeddingCacheManager creates a cache manager. A nil retrier uses the
// default retry policy.
func NewEmbeddingCacheManager(
	provider driven.EmbeddingService,
	cache driven.EmbeddingCache,
	retrier *Retrier,
	batchSize int,
) *EmbeddingCacheManager {
	if retrier == nil {
		retrier = NewRetrier(domain.DefaultRetrySettings())
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &EmbeddingCacheManager{
		provider:  provider,
		cache:     cache,
		retrier:   retrier,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// ModelName returns the provider model, or "" when no provider is set.
func (m *EmbeddingCacheManager) ModelName() string {
	if m.provider == nil {
		return ""
	}
	return m.provider.ModelName()
}

// Embed returns one unit-length, 6dp-rounded vector per text. texts and
// hashes must be aligned; hashes[i] is the body hash of texts[i].
func (m *EmbeddingCacheManager) Embed(ctx context.Context, texts, hashes []string) (*EmbeddingResult, error) {
	if len(texts) != len(hashes) {
		return nil, fmt.Errorf("%w: %d texts but %d hashes", domain.ErrPrecondition, len(texts), len(hashes))
	}
	if m.provider == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	model := m.provider.ModelName()
	dims := m.provider.Dimensions()
	result := &EmbeddingResult{Vectors: make([][]float64, len(texts)), Model: model}
	if len(texts) == 0 {
		return result, nil
	}

	// Distinct hashes in first-seen order, with the text that produced them.
	var unique []string
	textFor := make(map[string]string, len(hashes))
	for i, h := range hashes {
		if _, seen := textFor[h]; !seen {
			textFor[h] = texts[i]
			unique = append(unique, h)
		}
	}

	cached, err := m.cache.GetEmbeddings(ctx, model, unique)
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}

	vectors := make(map[string][]float64, len(unique))
	var missing []string
	for _, h := range unique {
		v, ok := cached[h]
		if !ok {
			missing = append(missing, h)
			continue
		}
		if dims > 0 && len(v) != dims {
			return nil, fmt.Errorf("%w: cached vector for %s has %d dimensions, model %s has %d",
				domain.ErrPrecondition, h, len(v), model, dims)
		}
		vectors[h] = domain.RoundVector(v)
	}
	result.Hits = len(unique) - len(missing)
	result.Misses = len(missing)
	logger.Debug("Embedding cache: %d hits, %d misses (model %s)", result.Hits, result.Misses, model)

	for start := 0; start < len(missing); start += m.batchSize {
		batch := missing[start:min(start+m.batchSize, len(missing))]
		records, err := m.computeBatch(ctx, model, dims, batch, textFor)
		if err != nil {
			return nil, err
		}
		if err := m.cache.PutEmbeddings(ctx, records); err != nil {
			return nil, fmt.Errorf("write embedding cache: %w", err)
		}
		for _, r := range records {
			vectors[r.BodySHA] = r.Vector
		}
	}
	metrics.RecordEmbeddingCache(result.Hits, result.Misses)

	for i, h := range hashes {
		result.Vectors[i] = vectors[h]
	}
	return result, nil
}

func (m *EmbeddingCacheManager) computeBatch(
	ctx context.Context, model string, dims int, batch []string, textFor map[string]string,
) ([]domain.EmbeddingRecord, error) {
	inputs := make([]string, len(batch))
	for i, h := range batch {
		inputs[i] = textFor[h]
	}

	start := time.Now()
	raw, err := Retry(ctx, m.retrier, "embed", func(ctx context.Context) ([][]float64, error) {
		return m.provider.EmbedBatch(ctx, inputs)
	})
	metrics.RecordProviderCall(model, "embed", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(raw) != len(batch) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts",
			domain.ErrPrecondition, len(raw), len(batch))
	}

	now := m.now()
	records := make([]domain.EmbeddingRecord, len(batch))
	for i, h := range batch {
		if dims > 0 && len(raw[i]) != dims {
			return nil, fmt.Errorf("%w: provider returned %d dimensions, model %s has %d",
				domain.ErrPrecondition, len(raw[i]), model, dims)
		}
		records[i] = domain.EmbeddingRecord{
			BodySHA:   h,
			Model:     model,
			Vector:    domain.RoundVector(Normalize(raw[i])),
			CreatedAt: now,
		}
	}
	return records, nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned as is.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	norm := floats.Norm(out, 2)
	if norm == 0 {
		return out
	}
	floats.Scale(1/norm, out)
	return out
}
