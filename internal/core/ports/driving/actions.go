package driving

import (
	"context"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// SynthesisResult is the outcome of synthesising actions for a theme.
type SynthesisResult struct {
	ThemeID   string           `json:"theme_id"`
	Synthesis domain.Synthesis `json:"synthesis"`
	Cached    bool             `json:"cached"`
	Inserted  int              `json:"inserted"`
	Actions   []domain.Action  `json:"actions"`
}

// ActionService synthesises and lists recommended actions for themes.
type ActionService interface {
	// SynthesizeTheme runs cache-first synthesis for a persisted theme using its
	// stored evidence, then dedupe-inserts the actions.
	SynthesizeTheme(ctx context.Context, themeID string) (*SynthesisResult, error)

	// ListActions returns the actions recorded for a theme.
	ListActions(ctx context.Context, themeID string) ([]domain.Action, error)
}
