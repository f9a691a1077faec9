package catalog

import (
	"time"

	"github.com/sosodev/duration"
)

// ParseDuration converts an ISO 8601 duration such as PT4M13S or P1DT2H to a
// time.Duration. Empty, "P0D", negative and unparseable inputs yield 0.
func ParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := duration.Parse(s)
	if err != nil || d.Negative {
		return 0
	}
	return d.ToTimeDuration()
}
