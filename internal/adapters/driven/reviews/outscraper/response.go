package outscraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/normalisers/html"
)

// apiReview is one Trustpilot review as returned by Outscraper. Field names
// vary between API versions, so several aliases are decoded.
type apiReview struct {
	ID          string `json:"id"`
	ReviewID    string `json:"review_id"`
	URL         string `json:"url"`
	Link        string `json:"link"`
	ReviewTitle string `json:"review_title"`
	ReviewText  string `json:"review_text"`
	Text        string `json:"text"`
	Content     string `json:"content"`

	ReviewRating *float64 `json:"review_rating"`
	Rating       *float64 `json:"rating"`

	ReviewTimestamp   any `json:"review_timestamp"`
	ReviewDatetimeUTC any `json:"review_datetime_utc"`
	Date              any `json:"date"`
	Timestamp         any `json:"timestamp"`
	PublishedAt       any `json:"published_at"`
	CreatedAt         any `json:"created_at"`
	DateOfExperience  any `json:"date_of_experience"`
}

// date returns the first parseable date among the known date fields.
func (r apiReview) date() (string, bool) {
	for _, v := range []any{
		r.ReviewTimestamp, r.ReviewDatetimeUTC, r.Date, r.Timestamp,
		r.PublishedAt, r.CreatedAt, r.DateOfExperience,
	} {
		if t, ok := parseDate(v); ok {
			return t.Format(domain.ReviewDateLayout), true
		}
	}
	return "", false
}

func (r apiReview) body() string {
	for _, s := range []string{r.ReviewText, r.Text, r.Content} {
		if s = html.ToText(s); s != "" {
			return s
		}
	}
	return ""
}

func (r apiReview) rating() *int {
	for _, v := range []*float64{r.ReviewRating, r.Rating} {
		if v != nil && *v >= 1 && *v <= 5 {
			n := int(*v)
			return &n
		}
	}
	return nil
}

func (r apiReview) sourceURL() string {
	switch {
	case r.URL != "":
		return r.URL
	case r.Link != "":
		return r.Link
	case r.ReviewID != "":
		return "https://www.trustpilot.com/reviews/" + r.ReviewID
	default:
		return ""
	}
}

func (r apiReview) id() string {
	if r.ReviewID != "" {
		return r.ReviewID
	}
	return r.ID
}

// toRaw converts the review. The boolean is false when it has no usable date.
func (r apiReview) toRaw(productID string) (domain.RawReview, bool) {
	date, ok := r.date()
	if !ok {
		return domain.RawReview{}, false
	}
	return domain.RawReview{
		ID:         r.id(),
		ProductID:  productID,
		Title:      html.ToText(r.ReviewTitle),
		Body:       r.body(),
		ReviewDate: date,
		Rating:     r.rating(),
		SourceURL:  r.sourceURL(),
	}, true
}

// decodeReviews unwraps the reviews of the first query in a response. The
// API nests results as {"data": [[...reviews]]}, though older responses use
// a bare array or an object holding items, reviews or data.
func decodeReviews(body []byte) ([]apiReview, error) {
	block, err := firstBlock(body)
	if err != nil {
		return nil, err
	}
	items, err := listOf(block)
	if err != nil {
		return nil, err
	}

	reviews := make([]apiReview, 0, len(items))
	for _, item := range items {
		var r apiReview
		if err := json.Unmarshal(item, &r); err != nil {
			// Non-object entries carry nothing usable.
			continue
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

func firstBlock(body []byte) (json.RawMessage, error) {
	raw := json.RawMessage(body)

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if isObject(raw) {
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if len(wrapper.Data) == 0 {
			return raw, nil
		}
		raw = wrapper.Data
	}

	if !isArray(raw) {
		return raw, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(arr) == 0 {
		return nil, nil
	}
	// A flat array of review objects is its own block.
	if isObject(arr[0]) && !hasListField(arr[0]) {
		return raw, nil
	}
	return arr[0], nil
}

func listOf(block json.RawMessage) ([]json.RawMessage, error) {
	if len(block) == 0 || string(block) == "null" {
		return nil, nil
	}
	if isArray(block) {
		var arr []json.RawMessage
		if err := json.Unmarshal(block, &arr); err != nil {
			return nil, fmt.Errorf("decode reviews: %w", err)
		}
		return arr, nil
	}
	if !isObject(block) {
		return nil, nil
	}

	var fields struct {
		Items   []json.RawMessage `json:"items"`
		Reviews []json.RawMessage `json:"reviews"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(block, &fields); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	switch {
	case fields.Items != nil:
		return fields.Items, nil
	case fields.Reviews != nil:
		return fields.Reviews, nil
	default:
		return fields.Data, nil
	}
}

func hasListField(obj json.RawMessage) bool {
	var fields struct {
		Items   json.RawMessage `json:"items"`
		Reviews json.RawMessage `json:"reviews"`
	}
	if err := json.Unmarshal(obj, &fields); err != nil {
		return false
	}
	return isArray(fields.Items) || isArray(fields.Reviews)
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}

func isArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}

// productID derives the product partition key from a target, which may be
// a bare domain or a URL.
func productID(target string) string {
	t := strings.TrimSpace(target)
	raw := t
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	return strings.ToLower(t)
}
