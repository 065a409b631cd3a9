package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/normalisers/review"
)

func TestEmbeddingCacheManager_SharedBodyHitsProviderOnce(t *testing.T) {
	n := review.New()
	a, err := n.Normalise(domain.RawReview{ID: "a", ProductID: "p", Body: "  Pricing   is\tconfusing "})
	require.NoError(t, err)
	b, err := n.Normalise(domain.RawReview{ID: "b", ProductID: "p", Body: "Ｐricing is confusing"})
	require.NoError(t, err)
	require.Equal(t, a.BodySHA, b.BodySHA)

	embedder := newMockEmbedder()
	cache := memory.NewEmbeddingCache()
	mgr := NewEmbeddingCacheManager(embedder, cache, noRetry(), 0)

	res, err := mgr.Embed(context.Background(),
		[]string{a.NormalizedBody, b.NormalizedBody},
		[]string{a.BodySHA, b.BodySHA})
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.timesEmbedded(a.NormalizedBody))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 0, res.Hits)
	assert.Equal(t, 1, res.Misses)
	assert.Equal(t, res.Vectors[0], res.Vectors[1])
	assert.Equal(t, "mock-embed", res.Model)
}

func TestEmbeddingCacheManager_SecondCallServedFromCache(t *testing.T) {
	embedder := newMockEmbedder()
	cache := memory.NewEmbeddingCache()
	mgr := NewEmbeddingCacheManager(embedder, cache, noRetry(), 0)
	ctx := context.Background()

	texts := []string{"pricing is high", "support is slow"}
	hashes := []string{"h1", "h2"}

	first, err := mgr.Embed(ctx, texts, hashes)
	require.NoError(t, err)
	second, err := mgr.Embed(ctx, texts, hashes)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 2, second.Hits)
	assert.Equal(t, 0, second.Misses)
	assert.Equal(t, first.Vectors, second.Vectors)
}

func TestEmbeddingCacheManager_NormalisesAndRounds(t *testing.T) {
	mgr := NewEmbeddingCacheManager(newMockEmbedder(), memory.NewEmbeddingCache(), noRetry(), 0)

	res, err := mgr.Embed(context.Background(), []string{"something else"}, []string{"h"})
	require.NoError(t, err)

	v := res.Vectors[0]
	assert.Equal(t, []float64{0.707107, 0.707107}, v)
	assert.InDelta(t, 1.0, math.Hypot(v[0], v[1]), 1e-6)
}

func TestEmbeddingCacheManager_Batches(t *testing.T) {
	embedder := newMockEmbedder()
	mgr := NewEmbeddingCacheManager(embedder, memory.NewEmbeddingCache(), noRetry(), 2)

	texts := []string{"a", "b", "c", "d", "e"}
	hashes := []string{"1", "2", "3", "4", "5"}
	res, err := mgr.Embed(context.Background(), texts, hashes)
	require.NoError(t, err)

	assert.Equal(t, 3, embedder.calls)
	assert.Len(t, res.Vectors, 5)
}

func TestEmbeddingCacheManager_RetriesTransientFailure(t *testing.T) {
	embedder := newMockEmbedder()
	embedder.failures = 1
	mgr := NewEmbeddingCacheManager(embedder, memory.NewEmbeddingCache(), fastRetry(), 0)

	res, err := mgr.Embed(context.Background(), []string{"pricing"}, []string{"h"})
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.calls)
	assert.Len(t, res.Vectors, 1)
}

func TestEmbeddingCacheManager_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("misaligned input", func(t *testing.T) {
		mgr := NewEmbeddingCacheManager(newMockEmbedder(), memory.NewEmbeddingCache(), noRetry(), 0)
		_, err := mgr.Embed(ctx, []string{"a"}, nil)
		assert.ErrorIs(t, err, domain.ErrPrecondition)
	})

	t.Run("no provider", func(t *testing.T) {
		mgr := NewEmbeddingCacheManager(nil, memory.NewEmbeddingCache(), noRetry(), 0)
		_, err := mgr.Embed(ctx, []string{"a"}, []string{"h"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.Empty(t, mgr.ModelName())
	})

	t.Run("wrong dimensions from provider", func(t *testing.T) {
		embedder := newMockEmbedder()
		embedder.dims = 3
		mgr := NewEmbeddingCacheManager(embedder, memory.NewEmbeddingCache(), noRetry(), 0)
		_, err := mgr.Embed(ctx, []string{"a"}, []string{"h"})
		assert.ErrorIs(t, err, domain.ErrPrecondition)
	})

	t.Run("wrong dimensions in cache", func(t *testing.T) {
		cache := memory.NewEmbeddingCache()
		require.NoError(t, cache.PutEmbeddings(ctx, []domain.EmbeddingRecord{
			{BodySHA: "h", Model: "mock-embed", Vector: []float64{1, 0, 0}},
		}))
		mgr := NewEmbeddingCacheManager(newMockEmbedder(), cache, noRetry(), 0)
		_, err := mgr.Embed(ctx, []string{"a"}, []string{"h"})
		assert.ErrorIs(t, err, domain.ErrPrecondition)
	})

	t.Run("permanent provider failure", func(t *testing.T) {
		embedder := newMockEmbedder()
		embedder.err = errors.New("bad request")
		mgr := NewEmbeddingCacheManager(embedder, memory.NewEmbeddingCache(), fastRetry(), 0)
		_, err := mgr.Embed(ctx, []string{"a"}, []string{"h"})
		require.Error(t, err)
		assert.Equal(t, 1, embedder.calls)
	})
}

func TestNormalize(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, Normalize([]float64{3, 4}), 1e-12)
	assert.Equal(t, []float64{0, 0}, Normalize([]float64{0, 0}))
}
