package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	GatewayCalls    atomic.Int64
	UpstreamErrors  atomic.Int64
	CoalescedCalls  atomic.Int64
	QuotaTrips      atomic.Int64
	QuotaRejections atomic.Int64
	CacheL1Hits     atomic.Int64
	CacheL2Hits     atomic.Int64
	CacheMisses     atomic.Int64
	Probes          atomic.Int64
	ProbeErrors     atomic.Int64
	ShortsFiltered  atomic.Int64
	BrokenFiltered  atomic.Int64
	FeedPages       atomic.Int64
}

var metricKeys = []string{
	"gateway_calls", "upstream_errors", "coalesced_calls",
	"quota_trips", "quota_rejections",
	"cache_l1_hits", "cache_l2_hits", "cache_misses",
	"probes", "probe_errors", "shorts_filtered", "broken_filtered",
	"feed_pages",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"gateway_calls":    metrics.GatewayCalls.Load(),
		"upstream_errors":  metrics.UpstreamErrors.Load(),
		"coalesced_calls":  metrics.CoalescedCalls.Load(),
		"quota_trips":      metrics.QuotaTrips.Load(),
		"quota_rejections": metrics.QuotaRejections.Load(),
		"cache_l1_hits":    metrics.CacheL1Hits.Load(),
		"cache_l2_hits":    metrics.CacheL2Hits.Load(),
		"cache_misses":     metrics.CacheMisses.Load(),
		"probes":           metrics.Probes.Load(),
		"probe_errors":     metrics.ProbeErrors.Load(),
		"shorts_filtered":  metrics.ShortsFiltered.Load(),
		"broken_filtered":  metrics.BrokenFiltered.Load(),
		"feed_pages":       metrics.FeedPages.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the catalog sub-package.
func IncrProbes()             { metrics.Probes.Add(1) }
func IncrProbeErrors()        { metrics.ProbeErrors.Add(1) }
func IncrFeedPages()          { metrics.FeedPages.Add(1) }
func AddShortsFiltered(n int) { metrics.ShortsFiltered.Add(int64(n)) }
func AddBrokenFiltered(n int) { metrics.BrokenFiltered.Add(int64(n)) }

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
