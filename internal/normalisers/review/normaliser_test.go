package review

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

func TestNormaliser_Normalise(t *testing.T) {
	n := New()

	r, err := n.Normalise(domain.RawReview{
		ID:         "r1",
		ProductID:  "acme.com",
		Body:       "  Pricing   is\tconfusing\n",
		ReviewDate: "2025-08-14",
	})
	require.NoError(t, err)

	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "Pricing is confusing", r.NormalizedBody)
	assert.Equal(t, SHA256Hex("Pricing is confusing"), r.BodySHA)
	assert.Len(t, r.BodySHA, 64)
	assert.Equal(t, "2025-08-14", r.ReviewDate)
}

func TestNormaliser_SameHashForWhitespaceVariants(t *testing.T) {
	n := New()

	a, err := n.Normalise(domain.RawReview{ProductID: "p", Body: "Great  support team"})
	require.NoError(t, err)
	b, err := n.Normalise(domain.RawReview{ProductID: "p", Body: "\tGreat support team  "})
	require.NoError(t, err)

	assert.Equal(t, a.BodySHA, b.BodySHA)
	assert.NotEqual(t, a.ID, b.ID, "derived ids hash the raw body")
}

func TestNormaliser_PreservesCase(t *testing.T) {
	n := New()

	lower, err := n.Normalise(domain.RawReview{ProductID: "p", Body: "slow sync"})
	require.NoError(t, err)
	upper, err := n.Normalise(domain.RawReview{ProductID: "p", Body: "SLOW sync"})
	require.NoError(t, err)

	assert.Equal(t, "SLOW sync", upper.NormalizedBody)
	assert.NotEqual(t, lower.BodySHA, upper.BodySHA)
}

func TestNormaliser_HashIdentity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		wantSame bool
	}{
		{"whitespace variants", "Checkout  keeps failing", "\nCheckout keeps\tfailing ", true},
		{"fullwidth casing variants", "ＣＨＥＣＫＯＵＴ keeps failing", "CHECKOUT keeps failing", true},
		{"ligature variants", "ﬁle upload broke", "file upload broke", true},
		{"letter case differs", "Checkout keeps failing", "checkout keeps failing", false},
	}

	n := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := n.Normalise(domain.RawReview{ProductID: "p", Body: tt.a})
			require.NoError(t, err)
			b, err := n.Normalise(domain.RawReview{ProductID: "p", Body: tt.b})
			require.NoError(t, err)

			if tt.wantSame {
				assert.Equal(t, a.BodySHA, b.BodySHA)
				assert.Equal(t, a.NormalizedBody, b.NormalizedBody)
				return
			}
			assert.NotEqual(t, a.BodySHA, b.BodySHA)
		})
	}
}

func TestNormaliser_NFKC(t *testing.T) {
	n := New()

	// Fullwidth letters and the "fi" ligature fold to ASCII under NFKC.
	r, err := n.Normalise(domain.RawReview{ProductID: "p", Body: "ＡＰＩ ﬁle"})
	require.NoError(t, err)

	assert.Equal(t, "API file", r.NormalizedBody)
}

func TestNormaliser_DerivedID(t *testing.T) {
	n := New()

	r, err := n.Normalise(domain.RawReview{ProductID: "acme.com", Body: "Nice"})
	require.NoError(t, err)

	assert.Equal(t, SHA256Hex("acme.com:Nice"), r.ID)
}

func TestNormaliser_TitleAndRating(t *testing.T) {
	n := New()
	rating := 1

	r, err := n.Normalise(domain.RawReview{
		ProductID: "p",
		Title:     "Terrible",
		Body:      "Lost my data",
		Rating:    &rating,
	})
	require.NoError(t, err)

	assert.Equal(t, "Terrible — Lost my data", r.Body)
	assert.Equal(t, domain.SeverityHigh, r.Severity)
}

func TestNormaliser_Invalid(t *testing.T) {
	n := New()

	tests := []struct {
		name string
		raw  domain.RawReview
	}{
		{"missing product", domain.RawReview{Body: "text"}},
		{"empty body", domain.RawReview{ProductID: "p", Body: " \n\t "}},
		{"invalid utf8", domain.RawReview{ProductID: "p", Body: "bad \xff byte"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalise(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input  string
		want   time.Time
		wantOK bool
	}{
		{"2025-08-14", time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC), true},
		{"2025-08-14T23:10:00+02:00", time.Date(2025, 8, 14, 21, 10, 0, 0, time.UTC), true},
		{"08/14/2025 09:30:00", time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC), true},
		{"1755129600", time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC), true},
		{"1755129600000", time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			require.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestNormaliser_KeepsUnparseableDate(t *testing.T) {
	r, err := New().Normalise(domain.RawReview{ProductID: "p", Body: "ok", ReviewDate: "sometime"})
	require.NoError(t, err)
	assert.Equal(t, "sometime", r.ReviewDate)
}
