package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PipelineVersion is recorded on every manifest.
const PipelineVersion = "1.0.0"

// ManifestStatus tracks the lifecycle of an ingestion run.
type ManifestStatus string

// Manifest statuses.
const (
	ManifestRunning   ManifestStatus = "running"
	ManifestCompleted ManifestStatus = "completed"
	ManifestFailed    ManifestStatus = "failed"
)

// Manifest records one ingestion run for a business unit and period.
// Its existence is the idempotency guard: one manifest per
// (BusinessUnitID, Period).
type Manifest struct {
	ID              string         `json:"id"`
	BusinessUnitID  string         `json:"business_unit_id"`
	Period          string         `json:"period"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	PipelineVersion string         `json:"pipeline_version"`
	Status          ManifestStatus `json:"status"`
	Error           string         `json:"error,omitempty"`
	ReviewCount     int            `json:"review_count"`
	ThemeCount      int            `json:"theme_count"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Quarter is a calendar quarter.
type Quarter struct {
	Year int
	Q    int
}

var quarterPattern = regexp.MustCompile(`^(\d{4})[-\s]?[Qq]([1-4])$`)

// ParseQuarter accepts "2025Q3", "2025-Q3", "2025 q3" and similar.
func ParseQuarter(s string) (Quarter, error) {
	m := quarterPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Quarter{}, fmt.Errorf("%w: quarter %q must look like 2025Q3", ErrInvalidInput, s)
	}
	year, _ := strconv.Atoi(m[1])
	q, _ := strconv.Atoi(m[2])
	return Quarter{Year: year, Q: q}, nil
}

// String returns the canonical form, e.g. "2025Q3".
func (q Quarter) String() string {
	return fmt.Sprintf("%04dQ%d", q.Year, q.Q)
}

// Range returns the first and last UTC calendar day of the quarter.
func (q Quarter) Range() (start, end time.Time) {
	startMonth := time.Month((q.Q-1)*3 + 1)
	start = time.Date(q.Year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 3, -1)
	return start, end
}

// Prev returns the preceding quarter.
func (q Quarter) Prev() Quarter {
	if q.Q == 1 {
		return Quarter{Year: q.Year - 1, Q: 4}
	}
	return Quarter{Year: q.Year, Q: q.Q - 1}
}

// Days returns the number of calendar days in the quarter.
func (q Quarter) Days() int {
	start, end := q.Range()
	return int(end.Sub(start).Hours()/24) + 1
}
