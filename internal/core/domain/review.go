package domain

import (
	"cmp"
	"slices"
	"time"
)

// ReviewDateLayout is the canonical calendar date layout for review dates.
const ReviewDateLayout = "2006-01-02"

// RawReview is a review as supplied by a review source, before normalisation.
type RawReview struct {
	// ID is the source-assigned identifier, if the source has one.
	ID string `json:"id,omitempty"`

	// ProductID is the partition key: the business unit or product reviewed.
	ProductID string `json:"product_id"`

	// Title is an optional headline prepended to the body by some sources.
	Title string `json:"title,omitempty"`

	// Body is the review text.
	Body string `json:"body"`

	// ReviewDate is the source date in any supported layout.
	ReviewDate string `json:"review_date,omitempty"`

	// Rating is the optional star rating (1-5).
	Rating *int `json:"rating,omitempty"`

	// SourceURL links back to the review at the source.
	SourceURL string `json:"source_url,omitempty"`
}

// Review is a normalised, immutable customer review.
type Review struct {
	ID             string
	ProductID      string
	Body           string
	ReviewDate     string
	NormalizedBody string

	// BodySHA is the hex SHA-256 of NormalizedBody. It keys the embedding
	// cache and breaks ordering ties.
	BodySHA string

	Rating    *int
	SourceURL string

	// Severity is derived from the rating; empty when unknown.
	Severity Severity

	CreatedAt time.Time
}

// Date parses ReviewDate. The boolean is false when the date is missing or
// not a recognised layout.
func (r Review) Date() (time.Time, bool) {
	return ParseReviewDate(r.ReviewDate)
}

// ParseReviewDate parses a canonical review date or RFC3339 timestamp.
func ParseReviewDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(ReviewDateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// CompareReviews orders reviews by (ProductID, ReviewDate, ID) ascending.
func CompareReviews(a, b Review) int {
	if c := cmp.Compare(a.ProductID, b.ProductID); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ReviewDate, b.ReviewDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortReviews sorts reviews into canonical order in place.
// Every downstream determinism guarantee relies on this order.
func SortReviews(reviews []Review) {
	slices.SortStableFunc(reviews, CompareReviews)
}

// SeverityFromRating maps a star rating onto a severity level.
// Ratings of 1-2 are high, 3 is medium, 4-5 are low.
func SeverityFromRating(rating *int) Severity {
	if rating == nil {
		return ""
	}
	switch r := *rating; {
	case r <= 0 || r > 5:
		return ""
	case r <= 2:
		return SeverityHigh
	case r == 3:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
