package domain

import (
	"strings"
	"time"
)

// ActionKind distinguishes product work from go-to-market work.
type ActionKind string

// Action kinds.
const (
	ActionKindProduct ActionKind = "product"
	ActionKindGTM     ActionKind = "gtm"
)

// IsValid returns true if the kind is recognised.
func (k ActionKind) IsValid() bool {
	return k == ActionKindProduct || k == ActionKindGTM
}

// ProposedAction is one recommended action as produced by synthesis.
type ProposedAction struct {
	Kind        ActionKind `json:"kind"`
	Description string     `json:"description"`
	Impact      int        `json:"impact"`
	Effort      int        `json:"effort"`
	Evidence    []string   `json:"evidence"`
}

// Synthesis is the validated output of action synthesis for one theme.
type Synthesis struct {
	RootCauses []string         `json:"root_causes"`
	Actions    []ProposedAction `json:"actions"`
}

// SynthesisCacheEntry caches a synthesis result keyed by (ThemeID, PromptVersion).
type SynthesisCacheEntry struct {
	ThemeID       string
	PromptVersion int
	Synthesis     Synthesis
	CreatedAt     time.Time
}

// Action is a persisted recommended action. Actions are unique per
// (ThemeID, NormalizedDescription).
type Action struct {
	ID                    string     `json:"id"`
	ThemeID               string     `json:"theme_id"`
	Kind                  ActionKind `json:"kind"`
	Description           string     `json:"description"`
	NormalizedDescription string     `json:"normalized_description"`
	Impact                int        `json:"impact"`
	Effort                int        `json:"effort"`
	Evidence              []string   `json:"evidence"`
	CreatedAt             time.Time  `json:"created_at"`
}

// NewAction builds an Action for a theme from a proposal.
func NewAction(id, themeID string, p ProposedAction) Action {
	return Action{
		ID:                    id,
		ThemeID:               themeID,
		Kind:                  p.Kind,
		Description:           strings.TrimSpace(p.Description),
		NormalizedDescription: NormalizeDescription(p.Description),
		Impact:                p.Impact,
		Effort:                p.Effort,
		Evidence:              p.Evidence,
	}
}

// NormalizeDescription is the dedupe key for an action description:
// lower-cased with whitespace runs collapsed and trimmed.
func NormalizeDescription(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
