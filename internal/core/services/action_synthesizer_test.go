package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

const validSynthesis = `{
  "root_causes": ["Plan names do not describe what is included"],
  "actions": [
    {"kind":"product","description":"Add a plan comparison table","impact":4,"effort":2,"evidence":["r1","zz"]},
    {"kind":"gtm","description":"Publish a pricing FAQ","impact":3,"effort":1,"evidence":["r2"]},
    {"kind":"product","description":"  add a plan   comparison TABLE ","impact":4,"effort":2,"evidence":["r1"]},
    {"kind":"product","description":"Show the invoice preview before checkout","impact":3,"effort":3,"evidence":["unknown"]}
  ]
}`

func synthesisInput() SynthesisInput {
	return SynthesisInput{
		ThemeID: "theme-1",
		Theme:   "Pricing clarity",
		Summary: "Customers cannot tell plans apart.",
		Examples: ExamplesFromReviews([]domain.Review{
			{ID: "r1", Body: "Pricing tiers are confusing"},
			{ID: "r2", Body: "Billing charged me twice"},
		}),
	}
}

func newTestSynthesizer(llm driven.LLMService) (*ActionSynthesizer, *memory.SynthesisCache, *memory.ActionStore) {
	cache := memory.NewSynthesisCache()
	actions := memory.NewActionStore()
	return NewActionSynthesizer(llm, cache, actions, noRetry(), 1), cache, actions
}

func TestActionSynthesizer_GeneratesAndDedupes(t *testing.T) {
	llm := replyWith(validSynthesis)
	synth, _, actions := newTestSynthesizer(llm)
	ctx := context.Background()

	out, err := synth.Synthesize(ctx, synthesisInput())
	require.NoError(t, err)

	assert.False(t, out.Cached)
	assert.Equal(t, 3, out.Inserted)
	require.Len(t, out.Synthesis.Actions, 3)
	assert.Equal(t, []string{"r1"}, out.Synthesis.Actions[0].Evidence)
	assert.Equal(t, []string{"r1"}, out.Synthesis.Actions[2].Evidence)

	assert.Equal(t, driven.ChatOptions{MaxTokens: 2000, Temperature: 0, JSON: true}, llm.lastOpts)
	assert.True(t, strings.HasPrefix(llm.lastMsgs[1].Content, "THEME INPUT:\n"))

	stored, err := actions.ListActions(ctx, "theme-1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestActionSynthesizer_CacheHitSkipsModel(t *testing.T) {
	llm := replyWith(validSynthesis)
	synth, _, actions := newTestSynthesizer(llm)
	ctx := context.Background()

	_, err := synth.Synthesize(ctx, synthesisInput())
	require.NoError(t, err)

	again, err := synth.Synthesize(ctx, synthesisInput())
	require.NoError(t, err)

	assert.True(t, again.Cached)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 1, llm.callCount())

	stored, err := actions.ListActions(ctx, "theme-1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestActionSynthesizer_CachedEntryStillInsertsActions(t *testing.T) {
	synth, cache, actions := newTestSynthesizer(nil)
	ctx := context.Background()

	parsed, err := ParseSynthesis(validSynthesis)
	require.NoError(t, err)
	require.NoError(t, cache.PutSynthesis(ctx, &domain.SynthesisCacheEntry{
		ThemeID: "theme-1", PromptVersion: 1, Synthesis: *parsed,
	}))

	out, err := synth.Synthesize(ctx, synthesisInput())
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, 3, out.Inserted)

	stored, err := actions.ListActions(ctx, "theme-1")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestActionSynthesizer_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing theme id", func(t *testing.T) {
		synth, _, _ := newTestSynthesizer(replyWith(validSynthesis))
		in := synthesisInput()
		in.ThemeID = " "
		_, err := synth.Synthesize(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no examples", func(t *testing.T) {
		synth, _, _ := newTestSynthesizer(replyWith(validSynthesis))
		in := synthesisInput()
		in.Examples = nil
		_, err := synth.Synthesize(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no model", func(t *testing.T) {
		synth, _, _ := newTestSynthesizer(nil)
		_, err := synth.Synthesize(ctx, synthesisInput())
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})

	t.Run("schema failure is not cached", func(t *testing.T) {
		synth, cache, actions := newTestSynthesizer(replyWith(`{"root_causes":[],"actions":[]}`))
		_, err := synth.Synthesize(ctx, synthesisInput())
		assert.ErrorIs(t, err, domain.ErrSchema)

		_, err = cache.GetSynthesis(ctx, "theme-1", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		stored, err := actions.ListActions(ctx, "theme-1")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
	t.Run("duplicates leave too few actions", func(t *testing.T) {
		reply := `{
		  "root_causes": ["Plans are unclear"],
		  "actions": [
		    {"kind":"product","description":"Add a plan comparison table","impact":4,"effort":2,"evidence":["r1"]},
		    {"kind":"product","description":"add a PLAN comparison table","impact":4,"effort":2,"evidence":["r1"]},
		    {"kind":"gtm","description":"Publish a pricing FAQ","impact":3,"effort":1,"evidence":["r2"]}
		  ]
		}`
		synth, cache, actions := newTestSynthesizer(replyWith(reply))
		_, err := synth.Synthesize(ctx, synthesisInput())
		assert.ErrorIs(t, err, domain.ErrSchema)

		_, err = cache.GetSynthesis(ctx, "theme-1", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		stored, err := actions.ListActions(ctx, "theme-1")
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestParseSynthesis(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{"valid", validSynthesis, false},
		{"prose before json", "Here is the plan:\n" + validSynthesis, false},
		{"too few actions", `{"root_causes":["a"],"actions":[
			{"kind":"product","description":"x","impact":1,"effort":1,"evidence":["r1"]}]}`, true},
		{"bad kind", `{"root_causes":["a"],"actions":[
			{"kind":"ops","description":"x","impact":1,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"y","impact":1,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"z","impact":1,"effort":1,"evidence":["r1"]}]}`, true},
		{"impact out of range", `{"root_causes":["a"],"actions":[
			{"kind":"product","description":"x","impact":6,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"y","impact":1,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"z","impact":1,"effort":1,"evidence":["r1"]}]}`, true},
		{"missing evidence", `{"root_causes":["a"],"actions":[
			{"kind":"product","description":"x","impact":1,"effort":1,"evidence":[]},
			{"kind":"gtm","description":"y","impact":1,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"z","impact":1,"effort":1,"evidence":["r1"]}]}`, true},
		{"blank root cause", `{"root_causes":["  "],"actions":[
			{"kind":"product","description":"x","impact":1,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"y","impact":1,"effort":1,"evidence":["r1"]},
			{"kind":"gtm","description":"z","impact":1,"effort":1,"evidence":["r1"]}]}`, true},
		{"not json", "I cannot help with that", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSynthesis(tt.reply)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrSchema)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExamplesFromReviews(t *testing.T) {
	examples := ExamplesFromReviews([]domain.Review{{ID: "r1", Body: strings.Repeat("a", 200)}})

	require.Len(t, examples, 1)
	assert.Len(t, examples[0].Snippet, 180)
	assert.Equal(t, EvidenceRef{Type: "review", ID: "r1"}, examples[0].Evidence)
}
