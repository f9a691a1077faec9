package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig controls retry behavior for transient upstream failures.
type RetryConfig struct {
	MaxTries    uint
	InitialWait time.Duration
	MaxWait     time.Duration
}

// DefaultRetryConfig is suitable for most upstream calls.
var DefaultRetryConfig = RetryConfig{
	MaxTries:    3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
}

// RetryDo retries fn with exponential backoff up to rc.MaxTries attempts.
// fn marks non-retryable failures with backoff.Permanent; those return at once.
func RetryDo[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rc.InitialWait
	bo.MaxInterval = rc.MaxWait

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && attempt < int(rc.MaxTries) {
			slog.Debug("retrying", slog.Int("attempt", attempt), slog.Any("error", err))
		}
		return v, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(rc.MaxTries))
}

// isRetryableStatus returns true for HTTP status codes worth retrying.
func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
