package driven

import "github.com/custodia-labs/reviewpulse/internal/core/domain"

// ReviewNormaliser canonicalises raw review records.
// Implementations are pure: the same input always yields the same Review.
type ReviewNormaliser interface {
	// Normalise validates a raw review and returns its normalised form with
	// NormalizedBody and BodySHA populated. Malformed input returns an error
	// wrapping domain.ErrInvalidInput.
	Normalise(raw domain.RawReview) (*domain.Review, error)
}
