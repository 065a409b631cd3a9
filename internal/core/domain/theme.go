package domain

import "time"

// Severity grades how strongly a theme or review signals a problem.
type Severity string

// Severity levels, least to most severe.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IsValid returns true if the severity is recognised.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// Rank orders severities: low 1, medium 2, high 3. Unknown is 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// OrDefault returns medium when the severity is unset or unknown.
func (s Severity) OrDefault() Severity {
	if s.IsValid() {
		return s
	}
	return SeverityMedium
}

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// AllSeverities returns severities ordered least to most severe.
func AllSeverities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh}
}

// ThemeLabel is the human-readable description of a cluster.
type ThemeLabel struct {
	Name     string   `json:"name"`
	Summary  string   `json:"summary"`
	Severity Severity `json:"severity"`

	// Fallback is true when the label was derived deterministically rather
	// than produced by the model.
	Fallback bool `json:"-"`
}

// ThemeDraft is a labelled cluster produced during a run.
type ThemeDraft struct {
	ClusterID   string   `json:"cluster_id"`
	TopicKey    string   `json:"topic_key"`
	EvidenceIDs []string `json:"evidence_ids"`
	Name        string   `json:"name"`
	Summary     string   `json:"summary"`
	Severity    Severity `json:"severity"`

	// ThemeID is the persisted theme row; empty in debug runs.
	ThemeID string `json:"theme_id,omitempty"`

	// MemberCount is the number of reviews in the cluster.
	MemberCount int `json:"member_count"`
}

// Theme is the authoritative persisted row for a draft, keyed by
// (ManifestID, ClusterID).
type Theme struct {
	ID            string    `json:"id"`
	ManifestID    string    `json:"manifest_id"`
	ProductID     string    `json:"product_id"`
	ClusterID     string    `json:"cluster_id"`
	TopicKey      string    `json:"topic_key"`
	PromptVersion int       `json:"prompt_version"`
	Name          string    `json:"name"`
	Summary       string    `json:"summary"`
	Severity      Severity  `json:"severity"`
	EvidenceIDs   []string  `json:"evidence_ids"`
	EvidenceCount int       `json:"evidence_count"`
	ReviewCount   int       `json:"review_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Label returns the theme's label.
func (t Theme) Label() ThemeLabel {
	return ThemeLabel{Name: t.Name, Summary: t.Summary, Severity: t.Severity}
}

// Draft converts the theme back to its draft shape.
func (t Theme) Draft() ThemeDraft {
	return ThemeDraft{
		ClusterID:   t.ClusterID,
		TopicKey:    t.TopicKey,
		EvidenceIDs: t.EvidenceIDs,
		Name:        t.Name,
		Summary:     t.Summary,
		Severity:    t.Severity,
		ThemeID:     t.ID,
		MemberCount: t.ReviewCount,
	}
}
