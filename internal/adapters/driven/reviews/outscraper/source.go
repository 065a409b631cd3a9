// Package outscraper provides a review source for Trustpilot reviews
// fetched through the Outscraper REST API.
package outscraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
)

// Ensure Source implements the interface.
var _ driven.ReviewSource = (*Source)(nil)

// Default configuration values.
const (
	DefaultBaseURL           = "https://api.app.outscraper.com"
	DefaultTimeout           = 120 * time.Second
	DefaultLimit             = 100
	DefaultRequestsPerSecond = 1.0

	sourceName       = "outscraper"
	failureThreshold = 3
	breakerCooldown  = 60 * time.Second
)

// Config holds configuration for the Outscraper source.
type Config struct {
	// APIKey is the Outscraper API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.app.outscraper.com).
	BaseURL string

	// Timeout bounds each request (default: 120s).
	Timeout time.Duration

	// RequestsPerSecond throttles requests (default: 1).
	RequestsPerSecond float64

	// DailyBudget caps reviews fetched per UTC day. Zero means unlimited.
	DailyBudget int

	// Usage records consumption against DailyBudget. Required when
	// DailyBudget is set.
	Usage driven.UsageStore
}

// Source fetches Trustpilot reviews, most recent first. Outscraper cannot
// filter by date, so the date range is applied to what comes back.
type Source struct {
	client  *http.Client
	baseURL string
	apiKey  string
	budget  int
	usage   driven.UsageStore
	limiter *RateLimiter
	breaker *gobreaker.CircuitBreaker[[]apiReview]
	now     func() time.Time
}

// NewSource creates an Outscraper source.
func NewSource(cfg Config) (*Source, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: outscraper API key is required", domain.ErrInvalidInput)
	}
	if cfg.DailyBudget > 0 && cfg.Usage == nil {
		return nil, fmt.Errorf("%w: outscraper daily budget needs a usage store", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	breaker := gobreaker.NewCircuitBreaker[[]apiReview](gobreaker.Settings{
		Name:    sourceName,
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		// Client errors say nothing about the health of the API.
		IsSuccessful: func(err error) bool {
			var pe *domain.ProviderError
			if errors.As(err, &pe) {
				return pe.StatusCode < 500 && pe.StatusCode != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Source{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		budget:  cfg.DailyBudget,
		usage:   cfg.Usage,
		limiter: NewRateLimiter(cfg.RequestsPerSecond),
		breaker: breaker,
		now:     time.Now,
	}, nil
}

// Name returns "outscraper".
func (s *Source) Name() string {
	return sourceName
}

// Fetch requests up to q.Limit of the target's most recent reviews and
// returns those dated within [q.Start, q.End]. Returns
// domain.ErrBudgetExceeded when the daily budget is spent.
func (s *Source) Fetch(ctx context.Context, q driven.ReviewQuery) ([]domain.RawReview, error) {
	if q.Target == "" {
		return nil, fmt.Errorf("%w: outscraper target is required", domain.ErrInvalidInput)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	today := s.now().UTC()
	if s.budget > 0 {
		used, err := s.usage.GetUsage(ctx, sourceName, today)
		if err != nil {
			return nil, fmt.Errorf("read outscraper usage: %w", err)
		}
		remaining := s.budget - used
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %d of %d reviews used today", domain.ErrBudgetExceeded, used, s.budget)
		}
		limit = min(limit, remaining)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	items, err := s.breaker.Execute(func() ([]apiReview, error) {
		return s.request(ctx, q.Target, limit)
	})
	metrics.RecordProviderCall(sourceName, "fetch", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if s.budget > 0 {
		total, err := s.usage.AddUsage(ctx, sourceName, today, len(items))
		if err != nil {
			return nil, fmt.Errorf("record outscraper usage: %w", err)
		}
		logger.Debug("Outscraper usage today: %d of %d", total, s.budget)
	}

	product := productID(q.Target)
	out := make([]domain.RawReview, 0, len(items))
	undated := 0
	for _, item := range items {
		raw, ok := item.toRaw(product)
		if !ok {
			undated++
			continue
		}
		if !inRange(raw.ReviewDate, q.Start, q.End) {
			continue
		}
		out = append(out, raw)
	}
	if undated > 0 {
		logger.Debug("Skipped %d outscraper reviews without a date", undated)
	}
	logger.Debug("Outscraper returned %d reviews for %s, %d in range", len(items), q.Target, len(out))
	return out, nil
}

func (s *Source) request(ctx context.Context, target string, limit int) ([]apiReview, error) {
	params := url.Values{}
	params.Set("query", target)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("languages", "default")
	params.Set("sort", "recency")
	params.Set("async", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/trustpilot/reviews?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		s.limiter.RecordRateLimit(resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{Provider: sourceName, StatusCode: resp.StatusCode, Message: string(body)}
	}

	return decodeReviews(body)
}

// inRange reports whether a canonical date lies within [start, end]. Zero
// bounds are open.
func inRange(date string, start, end time.Time) bool {
	if !start.IsZero() && date < start.UTC().Format(domain.ReviewDateLayout) {
		return false
	}
	if !end.IsZero() && date > end.UTC().Format(domain.ReviewDateLayout) {
		return false
	}
	return true
}
