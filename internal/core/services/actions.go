package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
)

// Ensure ActionService implements the interface.
var _ driving.ActionService = (*ActionService)(nil)

// ActionService synthesises actions for persisted themes.
type ActionService struct {
	themes      driven.ThemeStore
	reviews     driven.ReviewStore
	actions     driven.ActionStore
	synthesizer *ActionSynthesizer
}

// NewActionService creates a new action service.
func NewActionService(
	themes driven.ThemeStore,
	reviews driven.ReviewStore,
	actions driven.ActionStore,
	synthesizer *ActionSynthesizer,
) *ActionService {
	return &ActionService{
		themes:      themes,
		reviews:     reviews,
		actions:     actions,
		synthesizer: synthesizer,
	}
}

// SynthesizeTheme synthesises actions for a theme from its stored evidence.
func (s *ActionService) SynthesizeTheme(ctx context.Context, themeID string) (*driving.SynthesisResult, error) {
	theme, err := s.themes.GetTheme(ctx, themeID)
	if err != nil {
		return nil, fmt.Errorf("get theme %s: %w", themeID, err)
	}
	evidence, err := s.reviews.GetReviews(ctx, theme.EvidenceIDs)
	if err != nil {
		return nil, fmt.Errorf("load evidence for theme %s: %w", themeID, err)
	}
	if len(evidence) == 0 {
		return nil, fmt.Errorf("%w: theme %s has no stored evidence", domain.ErrPrecondition, themeID)
	}

	outcome, err := s.synthesizer.Synthesize(ctx, SynthesisInput{
		ThemeID:  theme.ID,
		Theme:    theme.Name,
		Summary:  theme.Summary,
		Examples: ExamplesFromReviews(evidence),
	})
	if err != nil {
		return nil, err
	}

	actions, err := s.actions.ListActions(ctx, theme.ID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return &driving.SynthesisResult{
		ThemeID:   theme.ID,
		Synthesis: outcome.Synthesis,
		Cached:    outcome.Cached,
		Inserted:  outcome.Inserted,
		Actions:   actions,
	}, nil
}

// ListActions returns the actions recorded for a theme.
func (s *ActionService) ListActions(ctx context.Context, themeID string) ([]domain.Action, error) {
	return s.actions.ListActions(ctx, themeID)
}
