package domain

import "time"

// ThemeMetric is a per-manifest snapshot of one theme, keyed by
// (ManifestID, TopicKey).
type ThemeMetric struct {
	ManifestID    string    `json:"manifest_id"`
	TopicKey      string    `json:"topic_key"`
	ClusterID     string    `json:"cluster_id"`
	Name          string    `json:"name"`
	Severity      Severity  `json:"severity"`
	EvidenceCount int       `json:"evidence_count"`
	ReviewCount   int       `json:"review_count"`
	ActionsCount  int       `json:"actions_count"`
	ComputedAt    time.Time `json:"computed_at"`
}

// TrendSide is one quarter's view of a topic.
type TrendSide struct {
	Name          string   `json:"name"`
	Severity      Severity `json:"severity"`
	EvidenceCount int      `json:"evidence_count"`
	ReviewCount   int      `json:"review_count"`
	ActionsCount  int      `json:"actions_count"`
}

// TrendDelta is current minus previous for each counter.
type TrendDelta struct {
	Reviews        int `json:"reviews"`
	Evidence       int `json:"evidence"`
	Actions        int `json:"actions"`
	SeverityChange int `json:"severity_change"`
}

// ThemeTrend compares a topic against the previous quarter's manifest,
// keyed by (CurrentManifestID, TopicKey). Prev and Deltas are nil when the
// topic did not exist in the previous quarter.
type ThemeTrend struct {
	CurrentManifestID string      `json:"current_manifest_id"`
	PrevManifestID    string      `json:"prev_manifest_id,omitempty"`
	BusinessUnitID    string      `json:"business_unit_id"`
	TopicKey          string      `json:"topic_key"`
	Current           TrendSide   `json:"current"`
	Prev              *TrendSide  `json:"prev,omitempty"`
	Deltas            *TrendDelta `json:"deltas,omitempty"`
	ComputedAt        time.Time   `json:"computed_at"`
}

// Side returns the metric as a trend side.
func (m ThemeMetric) Side() TrendSide {
	return TrendSide{
		Name:          m.Name,
		Severity:      m.Severity,
		EvidenceCount: m.EvidenceCount,
		ReviewCount:   m.ReviewCount,
		ActionsCount:  m.ActionsCount,
	}
}

// NewThemeTrend compares current against prev, which may be nil.
func NewThemeTrend(current ThemeMetric, prev *ThemeMetric) ThemeTrend {
	t := ThemeTrend{
		CurrentManifestID: current.ManifestID,
		TopicKey:          current.TopicKey,
		Current:           current.Side(),
	}
	if prev == nil {
		return t
	}
	side := prev.Side()
	t.PrevManifestID = prev.ManifestID
	t.Prev = &side
	t.Deltas = &TrendDelta{
		Reviews:        current.ReviewCount - prev.ReviewCount,
		Evidence:       current.EvidenceCount - prev.EvidenceCount,
		Actions:        current.ActionsCount - prev.ActionsCount,
		SeverityChange: current.Severity.OrDefault().Rank() - prev.Severity.OrDefault().Rank(),
	}
	return t
}
