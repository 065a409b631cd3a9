package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

// ReviewQuery selects reviews from a source.
type ReviewQuery struct {
	// Target is the business unit or product identifier at the source.
	Target string

	// Start and End bound the review date, inclusive.
	Start time.Time
	End   time.Time

	// Limit caps the number of reviews requested. Zero means source default.
	Limit int
}

// ReviewSource supplies raw reviews. The pipeline treats returned records
// as opaque and normalises whatever comes back.
type ReviewSource interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns raw reviews matching the query.
	Fetch(ctx context.Context, q ReviewQuery) ([]domain.RawReview, error)
}

// UsageStore meters requests against metered sources per UTC day.
type UsageStore interface {
	// GetUsage returns the units consumed by source on day.
	GetUsage(ctx context.Context, source string, day time.Time) (int, error)

	// AddUsage adds n units for source on day and returns the new total.
	AddUsage(ctx context.Context, source string, day time.Time, n int) (int, error)
}
