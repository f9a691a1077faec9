package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrQuotaExhausted matches any *QuotaExhaustedError via errors.Is.
var ErrQuotaExhausted = errors.New("upstream quota exhausted")

// QuotaExhaustedError is returned while the quota breaker is open.
// It is not retryable before ResetAt.
type QuotaExhaustedError struct {
	ResetAt time.Time
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("upstream quota exhausted, resets at %s", e.ResetAt.Format(time.RFC3339))
}

func (e *QuotaExhaustedError) Is(target error) bool {
	return target == ErrQuotaExhausted
}

// RetryIn is the time left until reset relative to now, floored at zero.
func (e *QuotaExhaustedError) RetryIn(now time.Time) time.Duration {
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpstreamError is a non-2xx, non-quota response from the upstream API.
type UpstreamError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: status %d", e.Endpoint, e.StatusCode)
}

// quotaSignals are the reason codes the upstream puts in the error body when
// the daily budget is spent. Matched as plain substrings.
var quotaSignals = []string{"quotaExceeded", "dailyLimitExceeded"}

// IsQuotaBody reports whether an error response body carries a quota signal.
func IsQuotaBody(body []byte) bool {
	s := string(body)
	for _, sig := range quotaSignals {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
