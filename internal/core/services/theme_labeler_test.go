package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

func pricingCluster() LabelInput {
	return LabelInput{
		ProductID: "unitA",
		ClusterID: "cl_abc123def456",
		Reviews: []domain.Review{
			{ID: "r1", Body: "Pricing tiers are confusing and expensive", Severity: domain.SeverityHigh},
			{ID: "r2", Body: "The pricing page is unclear", Severity: domain.SeverityHigh},
			{ID: "r3", Body: "Billing charged me twice", Severity: domain.SeverityMedium},
		},
	}
}

func TestThemeLabeler_FallbackIsDeterministic(t *testing.T) {
	labeler := NewThemeLabeler(nil, nil, noRetry(), 1)
	ctx := context.Background()

	first, err := labeler.Label(ctx, pricingCluster())
	require.NoError(t, err)
	second, err := labeler.Label(ctx, pricingCluster())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.Fallback)
	assert.Equal(t, "Pricing clarity", first.Name)
	assert.Equal(t, "Theme derived from 3 reviews focusing on pricing, usability.", first.Summary)
	assert.Equal(t, domain.SeverityHigh, first.Severity)
}

func TestThemeLabeler_FallbackWithoutAspects(t *testing.T) {
	labeler := NewThemeLabeler(nil, nil, noRetry(), 1)

	label, err := labeler.Label(context.Background(), LabelInput{
		ClusterID: "cl_1",
		Reviews:   []domain.Review{{ID: "x", Body: "meh"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Customer Theme", label.Name)
	assert.Equal(t, "Theme derived from 1 reviews.", label.Summary)
	assert.Equal(t, domain.SeverityMedium, label.Severity)
}

func TestThemeLabeler_UsesModelReply(t *testing.T) {
	llm := replyWith(`Sure, here it is: {"name":" Confusing pricing ","summary":"Customers cannot tell plans apart.","severity":"high"}`)
	labeler := NewThemeLabeler(llm, nil, noRetry(), 1)

	label, err := labeler.Label(context.Background(), pricingCluster())
	require.NoError(t, err)

	assert.False(t, label.Fallback)
	assert.Equal(t, "Confusing pricing", label.Name)
	assert.Equal(t, "Customers cannot tell plans apart.", label.Summary)
	assert.Equal(t, domain.SeverityHigh, label.Severity)

	assert.Equal(t, 1, llm.callCount())
	assert.Equal(t, driven.ChatOptions{MaxTokens: 1000, Temperature: 0, JSON: true}, llm.lastOpts)
	require.Len(t, llm.lastMsgs, 2)
	assert.Equal(t, driven.DefaultPrompt(driven.PromptThemeLabel), llm.lastMsgs[0].Content)

	var payload labelPayload
	require.NoError(t, json.Unmarshal([]byte(llm.lastMsgs[1].Content), &payload))
	assert.Equal(t, "cl_abc123def456", payload.ClusterID)
	assert.Equal(t, []domain.Aspect{domain.AspectPricing, domain.AspectUsability}, payload.TopAspects)
	assert.Equal(t, 3, payload.Counts.ReviewsInCluster)
	assert.Equal(t, "r1", payload.ExampleQuotes[0].ID)
}

func TestThemeLabeler_CountsWholeCluster(t *testing.T) {
	in := pricingCluster()
	in.MemberCount = 9

	label, err := NewThemeLabeler(nil, nil, noRetry(), 1).Label(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Theme derived from 9 reviews focusing on pricing, usability.", label.Summary)

	llm := replyWith(`{"name":"Pricing","summary":"Plans are unclear.","severity":"high"}`)
	_, err = NewThemeLabeler(llm, nil, noRetry(), 1).Label(context.Background(), in)
	require.NoError(t, err)

	var payload labelPayload
	require.NoError(t, json.Unmarshal([]byte(llm.lastMsgs[1].Content), &payload))
	assert.Equal(t, 9, payload.Counts.ReviewsInCluster)
}

func TestThemeLabeler_InvalidReplyFallsBack(t *testing.T) {
	replies := []string{
		"not json at all",
		`{"name":"X","summary":"ok","severity":"high"}`,
		`{"name":"Valid name","summary":"Valid summary","severity":"critical"}`,
	}
	for _, reply := range replies {
		t.Run(reply, func(t *testing.T) {
			labeler := NewThemeLabeler(replyWith(reply), nil, noRetry(), 1)

			label, err := labeler.Label(context.Background(), pricingCluster())
			require.NoError(t, err)
			assert.True(t, label.Fallback)
			assert.Equal(t, "Pricing clarity", label.Name)
		})
	}
}

func TestThemeLabeler_ProviderFailureFallsBack(t *testing.T) {
	llm := &mockLLM{reply: func([]driven.ChatMessage) (string, error) {
		return "", &domain.ProviderError{Provider: "mock", StatusCode: 500}
	}}
	labeler := NewThemeLabeler(llm, nil, fastRetry(), 1)

	label, err := labeler.Label(context.Background(), pricingCluster())
	require.NoError(t, err)
	assert.True(t, label.Fallback)
	assert.Equal(t, 2, llm.callCount())
}

func TestThemeLabeler_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &mockLLM{reply: func([]driven.ChatMessage) (string, error) {
		return "", context.Canceled
	}}
	labeler := NewThemeLabeler(llm, nil, noRetry(), 1)

	_, err := labeler.Label(ctx, pricingCluster())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestThemeLabeler_CacheHit(t *testing.T) {
	themes := memory.NewThemeStore()
	ctx := context.Background()
	require.NoError(t, themes.UpsertTheme(ctx, &domain.Theme{
		ID:            "t1",
		ManifestID:    "m1",
		ClusterID:     "cl_abc123def456",
		PromptVersion: 1,
		Name:          "Stored name",
		Summary:       "Stored summary",
		Severity:      domain.SeverityLow,
	}))
	llm := replyWith(`{"name":"Fresh","summary":"Fresh summary","severity":"high"}`)

	cached := NewThemeLabeler(llm, themes, noRetry(), 1)
	label, err := cached.Label(ctx, pricingCluster())
	require.NoError(t, err)
	assert.Equal(t, "Stored name", label.Name)
	assert.Equal(t, 0, llm.callCount())

	bumped := NewThemeLabeler(llm, themes, noRetry(), 2)
	label, err = bumped.Label(ctx, pricingCluster())
	require.NoError(t, err)
	assert.Equal(t, "Fresh", label.Name)
	assert.Equal(t, 1, llm.callCount())
}

func TestThemeLabeler_QuotesAreTruncated(t *testing.T) {
	llm := replyWith(`{"name":"Long","summary":"Long reviews","severity":"low"}`)
	labeler := NewThemeLabeler(llm, nil, noRetry(), 1)

	_, err := labeler.Label(context.Background(), LabelInput{
		ClusterID: "cl_long",
		Reviews:   []domain.Review{{ID: "r", Body: "Pricing " + strings.Repeat("x", 400)}},
	})
	require.NoError(t, err)

	var payload labelPayload
	require.NoError(t, json.Unmarshal([]byte(llm.lastMsgs[1].Content), &payload))
	require.Len(t, payload.ExampleQuotes, 1)
	assert.Len(t, []rune(payload.ExampleQuotes[0].Quote), 180)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Here you go:\n{\"a\":1}", `{"a":1}`},
		{"  plain  ", "plain"},
		{"{\"a\":{\"b\":2}}\n", `{"a":{"b":2}}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractJSON(tt.in))
	}
}

func TestMajoritySeverity(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.Severity
		want domain.Severity
	}{
		{"empty", nil, domain.SeverityMedium},
		{"clear majority", []domain.Severity{"low", "low", "high"}, domain.SeverityLow},
		{"tie goes to more severe", []domain.Severity{"low", "high"}, domain.SeverityHigh},
		{"unknown counts as medium", []domain.Severity{"", "", "low"}, domain.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MajoritySeverity(tt.in))
		})
	}
}
