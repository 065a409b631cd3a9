// Package file provides a review source backed by a local JSON file.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.ReviewSource = (*Source)(nil)

// Source reads reviews from a JSON array of domain.RawReview objects. The
// file is read on every Fetch so edits are picked up without a restart.
type Source struct {
	path string
}

// NewSource creates a file source. The file is not opened until Fetch.
func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: review file path is required", domain.ErrInvalidInput)
	}
	return &Source{path: path}, nil
}

// Name returns "file".
func (s *Source) Name() string {
	return "file"
}

// Path returns the file being read.
func (s *Source) Path() string {
	return s.path
}

// Fetch returns the reviews for q.Target dated within [q.Start, q.End].
// Reviews without a parseable date are skipped. Every match is returned;
// the caller applies the limit after canonical ordering.
func (s *Source) Fetch(ctx context.Context, q driven.ReviewQuery) ([]domain.RawReview, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: review file %s does not exist", domain.ErrPrecondition, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("read review file: %w", err)
	}

	var all []domain.RawReview
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: review file %s: %v", domain.ErrInvalidInput, s.path, err)
	}

	start := day(q.Start)
	end := day(q.End)
	out := make([]domain.RawReview, 0, len(all))
	skipped := 0
	for _, r := range all {
		if r.ProductID != q.Target {
			continue
		}
		d, ok := domain.ParseReviewDate(r.ReviewDate)
		if !ok {
			skipped++
			continue
		}
		d = day(d)
		if !q.Start.IsZero() && d.Before(start) {
			continue
		}
		if !q.End.IsZero() && d.After(end) {
			continue
		}
		out = append(out, r)
	}

	if skipped > 0 {
		logger.Debug("Skipped %d reviews without a date in %s", skipped, s.path)
	}
	logger.Debug("Loaded %d of %d reviews for %s from %s", len(out), len(all), q.Target, s.path)
	return out, nil
}

// day truncates t to its UTC calendar date.
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
