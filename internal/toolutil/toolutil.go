// Package toolutil provides shared helpers for go_tube MCP tools.
package toolutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// SplitIDs accepts ids as a list, a comma separated string, or both.
func SplitIDs(list []string, csv string) []string {
	out := make([]string, 0, len(list))
	for _, id := range list {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// relativeDaysRE matches a whole relative window in days, e.g. "7d".
var relativeDaysRE = regexp.MustCompile(`^(\d+)d$`)

// ParseSince parses a publishedAfter filter: a relative window like "7d" or
// "12h", or an absolute date in any common layout (RFC3339, 2024-01-02, ...).
// Empty input yields the zero time. Absolute dates without a zone are UTC.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if m := relativeDaysRE.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil || days <= 0 {
			return time.Time{}, fmt.Errorf("invalid published_after %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return time.Time{}, fmt.Errorf("invalid published_after %q", s)
		}
		return now.Add(-d), nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid published_after %q", s)
	}
	return t, nil
}

// ToolError turns a catalog error into a message the model can act on.
// Quota exhaustion carries the reset time so the caller can tell the user
// when to come back.
func ToolError(err error, now time.Time) error {
	var qe *engine.QuotaExhaustedError
	if errors.As(err, &qe) {
		return fmt.Errorf("video API daily quota exhausted, resets at %s (in %s); do not retry before then",
			qe.ResetAt.Format(time.RFC3339), qe.RetryIn(now).Round(time.Minute))
	}
	var ue *engine.UpstreamError
	if errors.As(err, &ue) {
		return fmt.Errorf("video API %s failed with status %d", ue.Endpoint, ue.StatusCode)
	}
	return err
}
