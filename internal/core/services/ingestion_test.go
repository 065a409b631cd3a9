package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
	"github.com/custodia-labs/reviewpulse/internal/normalisers/review"
)

type ingestionFixture struct {
	svc       *IngestionService
	source    *mockReviewSource
	embedder  *mockEmbedder
	reviews   *memory.ReviewStore
	manifests *memory.ManifestStore
	themes    *memory.ThemeStore
	actions   *memory.ActionStore
	insights  *InsightsService
}

func sampleRawReviews() []domain.RawReview {
	return []domain.RawReview{
		{ID: "r1", ProductID: "unitA", Body: "Pricing tiers are confusing", ReviewDate: "2025-10-03", Rating: intPtr(2)},
		{ID: "r2", ProductID: "unitA", Body: "The pricing page hides the real cost", ReviewDate: "2025-11-12", Rating: intPtr(1)},
		{ID: "r3", ProductID: "unitA", Body: "Pricing changed without notice", ReviewDate: "2025-12-01", Rating: intPtr(3)},
		{ID: "r4", ProductID: "unitA", Body: "Support never answered my ticket", ReviewDate: "2025-11-20", Rating: intPtr(1)},
	}
}

func newIngestionFixture(t *testing.T, llm driven.LLMService) *ingestionFixture {
	t.Helper()
	f := &ingestionFixture{
		source:    &mockReviewSource{reviews: sampleRawReviews()},
		embedder:  newMockEmbedder(),
		reviews:   memory.NewReviewStore(),
		manifests: memory.NewManifestStore(),
		themes:    memory.NewThemeStore(),
		actions:   memory.NewActionStore(),
	}
	f.insights = NewInsightsService(f.manifests, f.themes, f.actions, memory.NewMetricsStore())

	settings := domain.DefaultPipelineSettings()
	svc, err := NewIngestionService(IngestionDeps{
		Source:      f.source,
		Normaliser:  review.New(),
		Reviews:     f.reviews,
		Manifests:   f.manifests,
		Themes:      f.themes,
		Embeddings:  NewEmbeddingCacheManager(f.embedder, memory.NewEmbeddingCache(), noRetry(), 0),
		Labeler:     NewThemeLabeler(llm, f.themes, noRetry(), settings.PromptVersion),
		Synthesizer: NewActionSynthesizer(llm, memory.NewSynthesisCache(), f.actions, noRetry(), settings.PromptVersion),
		Insights:    f.insights,
		Retrier:     noRetry(),
		Pipeline:    settings,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestIngestionService_ClustersAndDropsNoise(t *testing.T) {
	f := newIngestionFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Run(ctx, driving.RunRequest{BusinessUnitID: " unitA ", Period: "2025-q4"})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, "unitA", res.Unit)
	assert.Equal(t, "2025Q4", res.Period)
	assert.Equal(t, 4, res.Processed)
	assert.NotEmpty(t, res.ManifestID)

	require.Len(t, res.Themes, 1)
	theme := res.Themes[0]
	assert.Equal(t, 3, theme.MemberCount)
	assert.ElementsMatch(t, []string{"r1", "r2", "r3"}, theme.EvidenceIDs)
	assert.NotContains(t, theme.EvidenceIDs, "r4")
	assert.Equal(t, "Pricing clarity", theme.Name)
	assert.Equal(t, domain.TopicKeyFor(theme.ClusterID), theme.TopicKey)
	assert.NotEmpty(t, theme.ThemeID)

	m, err := f.manifests.GetManifestByID(ctx, res.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, domain.ManifestCompleted, m.Status)
	assert.Equal(t, 4, m.ReviewCount)
	assert.Equal(t, 1, m.ThemeCount)
	assert.NotNil(t, m.CompletedAt)

	stored, err := f.themes.ListThemes(ctx, res.ManifestID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, theme.ThemeID, stored[0].ID)
	assert.Equal(t, 3, stored[0].ReviewCount)
	assert.Equal(t, 4, f.reviews.Count())

	metrics, err := f.insights.Metrics(ctx, res.ManifestID)
	require.NoError(t, err)
	assert.Len(t, metrics, 1)
}

// pricingLLM labels every cluster "Opaque pricing" and answers synthesis
// requests with synthesis.
func pricingLLM(synthesis string) *mockLLM {
	return &mockLLM{reply: func(msgs []driven.ChatMessage) (string, error) {
		if msgs[0].Content == driven.DefaultPrompt(driven.PromptThemeLabel) {
			return `{"name":"Opaque pricing","summary":"Plans and costs are hard to follow.","severity":"high"}`, nil
		}
		return synthesis, nil
	}}
}

func TestIngestionService_SecondRunIsAlreadyProcessed(t *testing.T) {
	llm := pricingLLM(validSynthesis)
	f := newIngestionFixture(t, llm)
	ctx := context.Background()
	req := driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"}

	first, err := f.svc.Run(ctx, req)
	require.NoError(t, err)
	require.True(t, first.OK)
	embedCalls, llmCalls := f.embedder.callCount(), llm.callCount()
	require.Positive(t, embedCalls)
	require.Positive(t, llmCalls)

	second, err := f.svc.Run(ctx, req)
	require.NoError(t, err)

	assert.False(t, second.OK)
	assert.Equal(t, MessageAlreadyProcessed, second.Message)
	assert.Equal(t, first.ManifestID, second.ManifestID)
	assert.Empty(t, second.Themes)
	assert.Equal(t, 1, f.source.calls)
	assert.Equal(t, embedCalls, f.embedder.callCount())
	assert.Equal(t, llmCalls, llm.callCount())
}

func TestIngestionService_FetchQuery(t *testing.T) {
	f := newIngestionFixture(t, nil)

	_, err := f.svc.Run(context.Background(), driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"})
	require.NoError(t, err)

	require.Len(t, f.source.queries, 1)
	q := f.source.queries[0]
	assert.Equal(t, "unitA", q.Target)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), q.Start)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), q.End)
	assert.Equal(t, 12, q.Limit)
}

func TestIngestionService_LimitAndMalformedReviews(t *testing.T) {
	f := newIngestionFixture(t, nil)
	f.source.reviews = append(sampleRawReviews(),
		domain.RawReview{ID: "blank", ProductID: "unitA", Body: "   "},
		domain.RawReview{ID: "r1", ProductID: "unitA", Body: "Pricing tiers are confusing", ReviewDate: "2025-10-03"},
	)

	res, err := f.svc.Run(context.Background(), driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4", Limit: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 3, f.reviews.Count())
}

func TestIngestionService_DuplicateIDsKeepCanonicalFirst(t *testing.T) {
	dup := domain.RawReview{ID: "r1", ProductID: "unitA", Body: "Pricing is a mystery", ReviewDate: "2025-10-01"}
	tests := []struct {
		name    string
		reviews []domain.RawReview
	}{
		{"duplicate last", append(sampleRawReviews(), dup)},
		{"duplicate first", append([]domain.RawReview{dup}, sampleRawReviews()...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestionFixture(t, nil)
			f.source.reviews = tt.reviews
			ctx := context.Background()

			res, err := f.svc.Run(ctx, driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"})
			require.NoError(t, err)
			assert.Equal(t, 4, res.Processed)

			got, err := f.reviews.GetReviews(ctx, []string{"r1"})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Pricing is a mystery", got[0].Body)
			assert.Equal(t, "2025-10-01", got[0].ReviewDate)
		})
	}
}

func TestIngestionService_WithModel(t *testing.T) {
	f := newIngestionFixture(t, pricingLLM(validSynthesis))
	ctx := context.Background()

	res, err := f.svc.Run(ctx, driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"})
	require.NoError(t, err)
	require.Len(t, res.Themes, 1)
	assert.Equal(t, "Opaque pricing", res.Themes[0].Name)
	assert.Equal(t, domain.SeverityHigh, res.Themes[0].Severity)

	actions, err := f.actions.ListActions(ctx, res.Themes[0].ThemeID)
	require.NoError(t, err)
	assert.Len(t, actions, 3)

	metrics, err := f.insights.Metrics(ctx, res.ManifestID)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, 3, metrics[0].ActionsCount)
	assert.Empty(t, res.SynthesisErrors)
	assert.Empty(t, res.Message)
}

func TestIngestionService_SynthesisFailureIsReported(t *testing.T) {
	f := newIngestionFixture(t, pricingLLM(`{"root_causes":[]}`))
	ctx := context.Background()

	res, err := f.svc.Run(ctx, driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.Len(t, res.Themes, 1)

	require.Len(t, res.SynthesisErrors, 1)
	failure := res.SynthesisErrors[0]
	assert.Equal(t, res.Themes[0].ThemeID, failure.ThemeID)
	assert.Equal(t, res.Themes[0].ClusterID, failure.ClusterID)
	assert.Equal(t, domain.ErrorKindSchema, failure.Kind)
	assert.NotEmpty(t, failure.Message)
	assert.Equal(t, "action synthesis failed for 1 of 1 themes", res.Message)

	actions, err := f.actions.ListActions(ctx, res.Themes[0].ThemeID)
	require.NoError(t, err)
	assert.Empty(t, actions)

	m, err := f.manifests.GetManifestByID(ctx, res.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, domain.ManifestCompleted, m.Status)
}

func TestIngestionService_DebugModes(t *testing.T) {
	tests := []struct {
		mode  driving.DebugMode
		check func(t *testing.T, rep *driving.DebugReport)
	}{
		{driving.DebugEmbeddings, func(t *testing.T, rep *driving.DebugReport) {
			require.NotNil(t, rep.Embedding)
			assert.Equal(t, "mock-embed", rep.Embedding.Model)
			assert.Equal(t, 4, rep.Embedding.Count)
			assert.Equal(t, 2, rep.Embedding.Dimensions)
			assert.Equal(t, []float64{1, 0}, rep.Embedding.SamplePreview)
			assert.Len(t, rep.Embedding.SampleHash, 12)
			assert.Empty(t, rep.Clusters)
		}},
		{driving.DebugClusters, func(t *testing.T, rep *driving.DebugReport) {
			require.Len(t, rep.Clusters, 1)
			assert.Equal(t, 3, rep.Clusters[0].Size)
			assert.Len(t, rep.Clusters[0].MemberHashes, 3)
			assert.Equal(t, []float64{1, 0}, rep.Clusters[0].CentroidPreview)
			assert.Empty(t, rep.Clusters[0].Evidence)
		}},
		{driving.DebugEvidence, func(t *testing.T, rep *driving.DebugReport) {
			require.Len(t, rep.Clusters, 1)
			ev := rep.Clusters[0].Evidence
			require.Len(t, ev, 3)
			assert.Equal(t, "r2", ev[0].ReviewID)
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			f := newIngestionFixture(t, nil)
			ctx := context.Background()

			res, err := f.svc.Run(ctx, driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4", Debug: tt.mode})
			require.NoError(t, err)
			require.NotNil(t, res.Debug)
			assert.Equal(t, tt.mode, res.Debug.Step)
			assert.Empty(t, res.ManifestID)
			assert.Empty(t, res.Themes)
			tt.check(t, res.Debug)

			manifests, err := f.manifests.ListManifests(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, manifests)
			assert.Zero(t, f.reviews.Count())
		})
	}
}

func TestIngestionService_FailedFetchMarksManifest(t *testing.T) {
	f := newIngestionFixture(t, nil)
	f.source.err = &domain.ProviderError{Provider: "mock", StatusCode: 401, Message: "bad key"}
	ctx := context.Background()

	_, err := f.svc.Run(ctx, driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"})
	require.Error(t, err)
	var perr *domain.ProviderError
	assert.True(t, errors.As(err, &perr))

	m, err := f.manifests.GetManifest(ctx, "unitA", "2025Q4")
	require.NoError(t, err)
	assert.Equal(t, domain.ManifestFailed, m.Status)
	assert.Contains(t, m.Error, "bad key")
}

func TestIngestionService_NoReviews(t *testing.T) {
	f := newIngestionFixture(t, nil)
	f.source.reviews = nil

	res, err := f.svc.Run(context.Background(), driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Zero(t, res.Processed)
	assert.Empty(t, res.Themes)
}

func TestIngestionService_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  driving.RunRequest
	}{
		{"blank unit", driving.RunRequest{BusinessUnitID: "  ", Period: "2025Q4"}},
		{"missing period", driving.RunRequest{BusinessUnitID: "unitA"}},
		{"bad period", driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q5"}},
		{"negative limit", driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4", Limit: intPtr(-1)}},
		{"zero limit", driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4", Limit: intPtr(0)}},
		{"unknown debug", driving.RunRequest{BusinessUnitID: "unitA", Period: "2025Q4", Debug: "all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestionFixture(t, nil)
			_, err := f.svc.Run(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, f.source.calls)
		})
	}
}

func TestNewIngestionService_RejectsBadConfig(t *testing.T) {
	settings := domain.DefaultPipelineSettings()
	settings.Eps = 0

	_, err := NewIngestionService(IngestionDeps{
		Source:     &mockReviewSource{},
		Normaliser: review.New(),
		Reviews:    memory.NewReviewStore(),
		Manifests:  memory.NewManifestStore(),
		Themes:     memory.NewThemeStore(),
		Embeddings: NewEmbeddingCacheManager(newMockEmbedder(), memory.NewEmbeddingCache(), nil, 0),
		Labeler:    NewThemeLabeler(nil, nil, nil, 1),
		Pipeline:   settings,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
