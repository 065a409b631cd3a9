package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/custodia-labs/reviewpulse/internal/aspects"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
	"github.com/custodia-labs/reviewpulse/internal/validation"
)

// Ensure ActionSynthesizer accepts custom prompts.
var _ driven.PromptStoreAware = (*ActionSynthesizer)(nil)

const (
	synthesisMaxTokens = 2000
	evidenceTypeReview = "review"
	themeInputPrefix   = "THEME INPUT:\n"
	minActions         = 3
	maxActions         = 5
)

// EvidenceRef points at the review behind an example.
type EvidenceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// SynthesisExample is one evidence snippet given to the model.
type SynthesisExample struct {
	Snippet  string      `json:"snippet"`
	Evidence EvidenceRef `json:"evidence"`
}

// SynthesisInput is the theme payload for synthesis.
type SynthesisInput struct {
	ThemeID  string             `json:"theme_id"`
	Theme    string             `json:"theme"`
	Summary  string             `json:"summary"`
	Examples []SynthesisExample `json:"examples"`
}

// ExamplesFromReviews builds review examples with snippets cut to the quote length.
func ExamplesFromReviews(reviews []domain.Review) []SynthesisExample {
	out := make([]SynthesisExample, len(reviews))
	for i, r := range reviews {
		out[i] = SynthesisExample{
			Snippet:  aspects.Truncate(r.Body, quoteSnippetSize),
			Evidence: EvidenceRef{Type: evidenceTypeReview, ID: r.ID},
		}
	}
	return out
}

// SynthesisOutcome is the result of one synthesis call.
type SynthesisOutcome struct {
	Synthesis domain.Synthesis
	Cached    bool
	Inserted  int
}

type synthesisOutput struct {
	RootCauses []string       `json:"root_causes" validate:"min=1,max=6,dive,required"`
	Actions    []actionOutput `json:"actions" validate:"min=3,max=5,dive"`
}

type actionOutput struct {
	Kind        string   `json:"kind" validate:"required,oneof=product gtm"`
	Description string   `json:"description" validate:"required"`
	Impact      int      `json:"impact" validate:"gte=1,lte=5"`
	Effort      int      `json:"effort" validate:"gte=1,lte=5"`
	Evidence    []string `json:"evidence" validate:"min=1,dive,required"`
}

// ActionSynthesizer derives root causes and recommended actions for a
// theme. Results are cached per (theme, prompt version) and actions are
// deduplicated on their normalised description.
type ActionSynthesizer struct {
	llm           driven.LLMService
	cache         driven.SynthesisCache
	actions       driven.ActionStore
	prompts       driven.PromptStore
	retrier       *Retrier
	promptVersion int
	newID         func() string
	now           func() time.Time
}

// NewActionSynthesizer creates a synthesizer. llm may be nil, in which case
// every cache miss returns domain.ErrLLMUnavailable.
func NewActionSynthesizer(
	llm driven.LLMService,
	cache driven.SynthesisCache,
	actions driven.ActionStore,
	retrier *Retrier,
	promptVersion int,
) *ActionSynthesizer {
	if retrier == nil {
		retrier = NewRetrier(domain.DefaultRetrySettings())
	}
	return &ActionSynthesizer{
		llm:           llm,
		cache:         cache,
		actions:       actions,
		retrier:       retrier,
		promptVersion: promptVersion,
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *ActionSynthesizer) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Synthesize returns the cached synthesis for the theme or asks the model,
// then inserts any actions not already recorded.
func (s *ActionSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (*SynthesisOutcome, error) {
	if strings.TrimSpace(in.ThemeID) == "" {
		return nil, fmt.Errorf("%w: theme id is required", domain.ErrInvalidInput)
	}
	if len(in.Examples) == 0 {
		return nil, fmt.Errorf("%w: synthesis needs at least one example", domain.ErrInvalidInput)
	}

	outcome := &SynthesisOutcome{}
	entry, err := s.cache.GetSynthesis(ctx, in.ThemeID, s.promptVersion)
	switch {
	case err == nil:
		logger.Debug("Synthesis cache hit for theme %s", in.ThemeID)
		metrics.Syntheses.WithLabelValues(metrics.OutcomeCached).Inc()
		outcome.Synthesis = entry.Synthesis
		outcome.Cached = true
	case errors.Is(err, domain.ErrNotFound):
		synth, err := s.generate(ctx, in)
		if err != nil {
			metrics.Syntheses.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}
		entry := &domain.SynthesisCacheEntry{
			ThemeID:       in.ThemeID,
			PromptVersion: s.promptVersion,
			Synthesis:     *synth,
			CreatedAt:     s.now(),
		}
		if err := s.cache.PutSynthesis(ctx, entry); err != nil {
			return nil, fmt.Errorf("write synthesis cache: %w", err)
		}
		metrics.Syntheses.WithLabelValues(metrics.OutcomeSuccess).Inc()
		outcome.Synthesis = *synth
	default:
		return nil, fmt.Errorf("read synthesis cache: %w", err)
	}

	inserted, err := s.insertActions(ctx, in.ThemeID, outcome.Synthesis.Actions)
	if err != nil {
		return nil, err
	}
	outcome.Inserted = inserted
	return outcome, nil
}

func (s *ActionSynthesizer) generate(ctx context.Context, in SynthesisInput) (*domain.Synthesis, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	system := driven.DefaultPrompt(driven.PromptActionSynthesis)
	if s.prompts != nil {
		p, err := s.prompts.Load(driven.PromptActionSynthesis)
		if err != nil {
			return nil, fmt.Errorf("load prompt %q: %w", driven.PromptActionSynthesis, err)
		}
		system = p
	}

	body, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode theme input: %w", err)
	}
	messages := []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: themeInputPrefix + string(body)},
	}
	opts := driven.ChatOptions{MaxTokens: synthesisMaxTokens, Temperature: 0, JSON: true}

	start := time.Now()
	reply, err := Retry(ctx, s.retrier, "synthesize", func(ctx context.Context) (string, error) {
		return s.llm.Chat(ctx, messages, opts)
	})
	metrics.RecordProviderCall(s.llm.ModelName(), "synthesize", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("synthesize theme %s: %w", in.ThemeID, err)
	}

	synth, err := ParseSynthesis(reply)
	if err != nil {
		return nil, fmt.Errorf("synthesize theme %s: %w", in.ThemeID, err)
	}
	cleaned := CleanSynthesis(synth, in.Examples)
	if n := len(cleaned.Actions); n < minActions || n > maxActions {
		return nil, fmt.Errorf("%w: synthesize theme %s: %d distinct actions, want %d-%d",
			domain.ErrSchema, in.ThemeID, n, minActions, maxActions)
	}
	return cleaned, nil
}

// ParseSynthesis decodes and validates a model reply. Failures wrap domain.ErrSchema.
func ParseSynthesis(reply string) (*domain.Synthesis, error) {
	var out synthesisOutput
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	for i := range out.RootCauses {
		out.RootCauses[i] = strings.TrimSpace(out.RootCauses[i])
	}
	for i := range out.Actions {
		out.Actions[i].Description = strings.TrimSpace(out.Actions[i].Description)
		for j := range out.Actions[i].Evidence {
			out.Actions[i].Evidence[j] = strings.TrimSpace(out.Actions[i].Evidence[j])
		}
	}
	if err := validation.Struct(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}

	synth := &domain.Synthesis{RootCauses: out.RootCauses}
	for _, a := range out.Actions {
		synth.Actions = append(synth.Actions, domain.ProposedAction{
			Kind:        domain.ActionKind(a.Kind),
			Description: a.Description,
			Impact:      a.Impact,
			Effort:      a.Effort,
			Evidence:    a.Evidence,
		})
	}
	return synth, nil
}

// CleanSynthesis drops duplicate actions and evidence ids that are not
// among the examples. An action left without evidence cites the first example.
func CleanSynthesis(synth *domain.Synthesis, examples []SynthesisExample) *domain.Synthesis {
	known := make(map[string]bool, len(examples))
	for _, ex := range examples {
		known[ex.Evidence.ID] = true
	}

	seen := make(map[string]bool, len(synth.Actions))
	out := &domain.Synthesis{RootCauses: synth.RootCauses}
	for _, a := range synth.Actions {
		key := domain.NormalizeDescription(a.Description)
		if seen[key] {
			continue
		}
		seen[key] = true

		var evidence []string
		for _, id := range a.Evidence {
			if known[id] && !slices.Contains(evidence, id) {
				evidence = append(evidence, id)
			}
		}
		if len(evidence) == 0 && len(examples) > 0 {
			evidence = []string{examples[0].Evidence.ID}
		}
		a.Evidence = evidence
		out.Actions = append(out.Actions, a)
	}
	return out
}

func (s *ActionSynthesizer) insertActions(ctx context.Context, themeID string, proposed []domain.ProposedAction) (int, error) {
	if len(proposed) == 0 {
		return 0, nil
	}
	now := s.now()
	actions := make([]domain.Action, len(proposed))
	for i, p := range proposed {
		actions[i] = domain.NewAction(s.newID(), themeID, p)
		actions[i].CreatedAt = now
	}
	inserted, err := s.actions.InsertActions(ctx, actions)
	if err != nil {
		return 0, fmt.Errorf("insert actions: %w", err)
	}
	metrics.ActionsInserted.Add(float64(inserted))
	return inserted, nil
}
