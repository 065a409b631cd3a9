package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/custodia-labs/reviewpulse/internal/aspects"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
	"github.com/custodia-labs/reviewpulse/internal/validation"
)

// Ensure ThemeLabeler accepts custom prompts.
var _ driven.PromptStoreAware = (*ThemeLabeler)(nil)

const (
	labelMaxTokens   = 1000
	labelTopAspects  = 5
	labelMaxQuotes   = 6
	fallbackName     = "Customer Theme"
	quoteSnippetSize = aspects.MaxQuoteLen
)

// trailingObject matches the last JSON object in a model reply.
var trailingObject = regexp.MustCompile(`\{[\s\S]*\}$`)

// LabelInput describes a cluster to label.
type LabelInput struct {
	ProductID string
	ClusterID string

	// MemberCount is the cluster size. Zero falls back to len(Reviews).
	MemberCount int

	// Reviews are the cluster's evidence reviews in rank order.
	Reviews []domain.Review
}

// labelPayload is the user message sent to the model.
type labelPayload struct {
	ProductID     string          `json:"product_id"`
	ClusterID     string          `json:"cluster_id"`
	TopAspects    []domain.Aspect `json:"top_aspects"`
	ExampleQuotes []labelQuote    `json:"example_quotes"`
	Counts        labelCounts     `json:"counts"`
}

type labelQuote struct {
	ID    string `json:"id"`
	Quote string `json:"quote"`
}

type labelCounts struct {
	ReviewsInCluster int `json:"reviews_in_cluster"`
}

// labelOutput is the schema the model reply must satisfy.
type labelOutput struct {
	Name     string `json:"name" validate:"required,min=2,max=80"`
	Summary  string `json:"summary" validate:"required,min=5,max=400"`
	Severity string `json:"severity" validate:"required,oneof=low medium high"`
}

// ThemeLabeler names clusters. Labels are cached per (cluster, prompt
// version) in the theme table; when the model is missing or its reply is
// unusable a deterministic label is derived from the cluster's aspects.
type ThemeLabeler struct {
	llm           driven.LLMService
	themes        driven.ThemeStore
	prompts       driven.PromptStore
	retrier       *Retrier
	tagger        *aspects.Tagger
	promptVersion int
}

// NewThemeLabeler creates a labeler. llm and themes may be nil.
func NewThemeLabeler(
	llm driven.LLMService,
	themes driven.ThemeStore,
	retrier *Retrier,
	promptVersion int,
) *ThemeLabeler {
	if retrier == nil {
		retrier = NewRetrier(domain.DefaultRetrySettings())
	}
	return &ThemeLabeler{
		llm:           llm,
		themes:        themes,
		retrier:       retrier,
		tagger:        aspects.NewTagger(),
		promptVersion: promptVersion,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (l *ThemeLabeler) SetPromptStore(store driven.PromptStore) {
	l.prompts = store
}

// Label returns the label for a cluster.
func (l *ThemeLabeler) Label(ctx context.Context, in LabelInput) (*domain.ThemeLabel, error) {
	if l.themes != nil {
		cached, err := l.themes.FindThemeLabel(ctx, in.ClusterID, l.promptVersion)
		switch {
		case err == nil:
			metrics.ThemeLabels.WithLabelValues(metrics.OutcomeCached).Inc()
			label := cached.Label()
			return &label, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("read theme label cache: %w", err)
		}
	}

	payload, fallback := l.prepare(in)
	if l.llm == nil {
		metrics.ThemeLabels.WithLabelValues(metrics.OutcomeFallback).Inc()
		return fallback, nil
	}

	label, err := l.ask(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("Theme label for %s fell back to deterministic name: %v", in.ClusterID, err)
		metrics.ThemeLabels.WithLabelValues(metrics.OutcomeFallback).Inc()
		return fallback, nil
	}
	metrics.ThemeLabels.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return label, nil
}

func (l *ThemeLabeler) prepare(in LabelInput) (labelPayload, *domain.ThemeLabel) {
	tags := l.tagger.TagAll(in.Reviews)

	top := aspects.Top(tags, labelTopAspects)
	topNames := make([]domain.Aspect, len(top))
	for i, a := range top {
		topNames[i] = a.Aspect
	}

	quotes := make([]labelQuote, 0, labelMaxQuotes)
	severities := make([]domain.Severity, 0, len(tags))
	for _, tag := range tags {
		severities = append(severities, tag.Severity)
		if len(quotes) < labelMaxQuotes && strings.TrimSpace(tag.Quote) != "" {
			quotes = append(quotes, labelQuote{
				ID:    tag.ReviewID,
				Quote: aspects.Truncate(strings.TrimSpace(tag.Quote), quoteSnippetSize),
			})
		}
	}

	n := in.MemberCount
	if n <= 0 {
		n = len(in.Reviews)
	}
	payload := labelPayload{
		ProductID:     in.ProductID,
		ClusterID:     in.ClusterID,
		TopAspects:    topNames,
		ExampleQuotes: quotes,
		Counts:        labelCounts{ReviewsInCluster: n},
	}

	name := fallbackName
	if len(topNames) > 0 {
		name = topNames[0].Title()
	}
	summary := fmt.Sprintf("Theme derived from %d reviews.", n)
	if len(topNames) > 0 {
		parts := make([]string, len(topNames))
		for i, a := range topNames {
			parts[i] = string(a)
		}
		summary = fmt.Sprintf("Theme derived from %d reviews focusing on %s.", n, strings.Join(parts, ", "))
	}

	return payload, &domain.ThemeLabel{
		Name:     name,
		Summary:  summary,
		Severity: MajoritySeverity(severities),
		Fallback: true,
	}
}

func (l *ThemeLabeler) ask(ctx context.Context, payload labelPayload) (*domain.ThemeLabel, error) {
	system, err := l.loadPrompt(driven.PromptThemeLabel)
	if err != nil {
		return nil, err
	}
	user, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode label payload: %w", err)
	}

	messages := []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: string(user)},
	}
	opts := driven.ChatOptions{MaxTokens: labelMaxTokens, Temperature: 0, JSON: true}

	start := time.Now()
	reply, err := Retry(ctx, l.retrier, "label", func(ctx context.Context) (string, error) {
		return l.llm.Chat(ctx, messages, opts)
	})
	metrics.RecordProviderCall(l.llm.ModelName(), "label", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	var out labelOutput
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	out.Name = strings.TrimSpace(out.Name)
	out.Summary = strings.TrimSpace(out.Summary)
	if err := validation.Struct(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSchema, err)
	}
	return &domain.ThemeLabel{
		Name:     out.Name,
		Summary:  out.Summary,
		Severity: domain.Severity(out.Severity),
	}, nil
}

func (l *ThemeLabeler) loadPrompt(name string) (string, error) {
	if l.prompts == nil {
		return driven.DefaultPrompt(name), nil
	}
	prompt, err := l.prompts.Load(name)
	if err != nil {
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	return prompt, nil
}

// ExtractJSON returns the trailing {...} object of a model reply, or the
// trimmed reply when none is found.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := trailingObject.FindString(s); m != "" {
		return strings.TrimSpace(m)
	}
	return s
}

// MajoritySeverity returns the most frequent severity. Ties go to the more
// severe level; an empty input is medium.
func MajoritySeverity(severities []domain.Severity) domain.Severity {
	if len(severities) == 0 {
		return domain.SeverityMedium
	}
	counts := make(map[domain.Severity]int, 3)
	for _, s := range severities {
		counts[s.OrDefault()]++
	}
	best, bestCount := domain.SeverityMedium, 0
	for _, s := range domain.AllSeverities() {
		if counts[s] >= bestCount && counts[s] > 0 {
			best, bestCount = s, counts[s]
		}
	}
	return best
}
