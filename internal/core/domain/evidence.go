package domain

// EvidenceScore explains how one review ranked within its cluster.
type EvidenceScore struct {
	ReviewID       string   `json:"id"`
	ReviewDate     string   `json:"review_date"`
	Severity       Severity `json:"severity"`
	Score          float64  `json:"score"`
	TFIDF          float64  `json:"tfidf_sum"`
	Recency        float64  `json:"recency"`
	SeverityWeight float64  `json:"severity_weight"`
}
