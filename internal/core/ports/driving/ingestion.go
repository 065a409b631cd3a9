package driving

import (
	"context"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// DebugMode short-circuits a run after an intermediate stage.
type DebugMode string

// Debug modes. Debug runs never create manifests, themes or actions.
const (
	DebugNone DebugMode = ""

	// DebugEmbeddings stops after embedding and reports vector previews.
	DebugEmbeddings DebugMode = "emb"

	// DebugClusters stops after clustering and reports membership.
	DebugClusters DebugMode = "clu"

	// DebugEvidence stops after evidence selection and reports scores.
	DebugEvidence DebugMode = "ev"
)

// IsValid returns true if the mode is recognised. The empty mode is valid.
func (m DebugMode) IsValid() bool {
	switch m {
	case DebugNone, DebugEmbeddings, DebugClusters, DebugEvidence:
		return true
	default:
		return false
	}
}

// RunRequest asks for one ingestion run.
type RunRequest struct {
	// BusinessUnitID is the review source target and product partition key.
	BusinessUnitID string `json:"businessUnitId" validate:"required"`

	// Period is a quarter such as 2025Q3.
	Period string `json:"quarter" validate:"required"`

	// Limit caps the number of reviews processed. Nil means the configured
	// default; an explicit value must be positive.
	Limit *int `json:"limit,omitempty" validate:"omitempty,gt=0"`

	// Debug optionally short-circuits the run.
	Debug DebugMode `json:"debug,omitempty"`
}

// RunResult is the outcome of an ingestion run.
type RunResult struct {
	OK         bool                `json:"ok"`
	Message    string              `json:"message,omitempty"`
	ManifestID string              `json:"manifestId,omitempty"`
	Processed  int                 `json:"processed"`
	Unit       string              `json:"unit"`
	Period     string              `json:"quarter"`
	Themes     []domain.ThemeDraft `json:"themes"`
	Debug      *DebugReport        `json:"debug,omitempty"`

	// SynthesisErrors lists themes whose action synthesis failed. The
	// themes themselves are stored; only their actions are missing.
	SynthesisErrors []SynthesisError `json:"synthesisErrors,omitempty"`
}

// SynthesisError reports a failed action synthesis for one theme.
type SynthesisError struct {
	ThemeID   string           `json:"themeId"`
	ClusterID string           `json:"clusterId"`
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
}

// DebugReport carries intermediate state for a debug run.
type DebugReport struct {
	Step      DebugMode        `json:"step"`
	Embedding *EmbeddingReport `json:"embedding,omitempty"`
	Clusters  []ClusterReport  `json:"clusters,omitempty"`
}

// EmbeddingReport summarises the embedding stage.
type EmbeddingReport struct {
	Model         string    `json:"usedModel"`
	Count         int       `json:"count"`
	Dimensions    int       `json:"dim"`
	CacheHits     int       `json:"cacheHits"`
	SamplePreview []float64 `json:"samplePreview"`
	SampleHash    string    `json:"sampleHash"`
}

// ClusterReport summarises one cluster.
type ClusterReport struct {
	ID              string                 `json:"id"`
	Size            int                    `json:"size"`
	Singleton       bool                   `json:"singleton,omitempty"`
	CentroidPreview []float64              `json:"centroidPreview"`
	MemberHashes    []string               `json:"memberIds,omitempty"`
	Evidence        []domain.EvidenceScore `json:"evidence,omitempty"`
}

// IngestionService runs the review-to-theme pipeline.
type IngestionService interface {
	// Run executes one ingestion for a business unit and period. When a
	// manifest already exists the result has OK false and Message
	// "already processed", and nothing is fetched.
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}
