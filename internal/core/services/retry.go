package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
)

// Retrier retries provider calls that fail with transient faults.
// It uses a fixed number of attempts and a fixed delay with no jitter.
type Retrier struct {
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier from settings. Attempts below one are raised to one.
func NewRetrier(settings domain.RetrySettings) *Retrier {
	return &Retrier{
		attempts: max(1, settings.Attempts),
		backoff:  max(0, settings.Backoff),
		sleep:    sleepContext,
	}
}

// Attempts returns the total number of tries per call.
func (r *Retrier) Attempts() int {
	return r.attempts
}

// Do runs fn until it succeeds, fails permanently, or the attempts run out.
// Exhausted transient failures are wrapped in domain.ErrTransport.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(ctx, err) {
			return err
		}
		if attempt == r.attempts {
			break
		}

		logger.Debug("%s: transient failure (attempt %d/%d): %v", op, attempt, r.attempts, err)
		metrics.ProviderRetries.WithLabelValues(op).Inc()
		if serr := r.sleep(ctx, r.backoff); serr != nil {
			return fmt.Errorf("%s: %w", op, serr)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
}

// Retry is Do for calls that return a value.
func Retry[T any](ctx context.Context, r *Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsTransient reports whether err is worth retrying: provider 5xx responses,
// timeouts, connection resets and refusals, DNS failures, and cancellations
// that did not come from the caller's own context.
func IsTransient(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrTransport) {
		return false
	}

	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr.Transient()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// The caller gave up; do not retry on its behalf.
		if ctx.Err() != nil {
			return false
		}
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
