// Package review normalises raw review records.
//
// Bodies are NFKC normalised, whitespace runs are collapsed to a single
// space and the result is trimmed. Case is preserved. The SHA-256 of the
// normalised body is the review's content hash.
package review

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.ReviewNormaliser = (*Normaliser)(nil)

// titleSeparator joins a review title and its text.
const titleSeparator = " — "

// Normaliser canonicalises raw reviews.
type Normaliser struct {
	now func() time.Time
}

// New creates a new review normaliser.
func New() *Normaliser {
	return &Normaliser{now: time.Now}
}

// Normalise validates a raw review and returns its canonical form.
func (n *Normaliser) Normalise(raw domain.RawReview) (*domain.Review, error) {
	productID := strings.TrimSpace(raw.ProductID)
	if productID == "" {
		return nil, fmt.Errorf("%w: review has no product id", domain.ErrInvalidInput)
	}

	body := composeBody(raw.Title, raw.Body)
	if !utf8.ValidString(body) {
		return nil, fmt.Errorf("%w: review body is not valid UTF-8", domain.ErrInvalidInput)
	}

	normalized := NormalizeText(body)
	if normalized == "" {
		return nil, fmt.Errorf("%w: review body is empty", domain.ErrInvalidInput)
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		id = SHA256Hex(productID + ":" + body)
	}

	date := strings.TrimSpace(raw.ReviewDate)
	if parsed, ok := ParseDate(date); ok {
		date = parsed.Format(domain.ReviewDateLayout)
	}

	return &domain.Review{
		ID:             id,
		ProductID:      productID,
		Body:           body,
		ReviewDate:     date,
		NormalizedBody: normalized,
		BodySHA:        SHA256Hex(normalized),
		Rating:         raw.Rating,
		SourceURL:      raw.SourceURL,
		Severity:       domain.SeverityFromRating(raw.Rating),
		CreatedAt:      n.now(),
	}, nil
}

// NormalizeText applies NFKC, collapses whitespace runs and trims.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// SHA256Hex returns the lowercase hex SHA-256 of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func composeBody(title, text string) string {
	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	switch {
	case title != "" && text != "":
		return title + titleSeparator + text
	case title != "":
		return title
	default:
		return text
	}
}

var usDateTime = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})[ T](\d{2}):(\d{2}):(\d{2})$`)

var dateLayouts = []string{
	domain.ReviewDateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDate accepts calendar dates, RFC3339 timestamps, US-style
// "MM/DD/YYYY HH:MM:SS" and unix epoch seconds or milliseconds.
// The result is in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(epoch), true
	}
	if m := usDateTime.FindStringSubmatch(s); m != nil {
		t, err := time.Parse("01/02/2006 15:04:05", fmt.Sprintf("%s/%s/%s %s:%s:%s", m[1], m[2], m[3], m[4], m[5], m[6]))
		if err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(v int64) time.Time {
	switch {
	case v > 1e12:
		return time.UnixMilli(v).UTC()
	case v > 1e9:
		return time.Unix(v, 0).UTC()
	default:
		return time.UnixMilli(v).UTC()
	}
}
