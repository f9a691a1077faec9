package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	YouTubeAPIBase         string
	YouTubeAPIKey          string
	YouTubeAPIKeyFallbacks []string
	ShortsProbeBase        string
	RedisURL               string
	DatabaseURL            string // postgres L2, used when RedisURL is empty
	QuotaTimezone          string
	CacheMaxEntries        int
	CacheCleanupInterval   time.Duration
	DetailTTL              time.Duration
	SearchTTL              time.Duration
	VerdictTTL             time.Duration
	ChannelMapTTL          time.Duration
	ShortThreshold         time.Duration
	ProbeConcurrency       int
	ProbeTimeout           time.Duration
	ProbeRate              float64 // probes per second, 0 = unpaced
	FeedPageSize           int
	FeedBatchSize          int
	FetchTimeout           time.Duration
	HTTPClient             *http.Client
}

// Defaults used when a Config field is left at its zero value.
const (
	DefaultYouTubeAPIBase  = "https://www.googleapis.com/youtube/v3"
	DefaultShortsProbeBase = "https://www.youtube.com/shorts/"
	DefaultQuotaTimezone   = "America/Los_Angeles"
)

// WithDefaults returns a copy of c with zero fields filled in.
func (c Config) WithDefaults() Config {
	if c.YouTubeAPIBase == "" {
		c.YouTubeAPIBase = DefaultYouTubeAPIBase
	}
	if c.ShortsProbeBase == "" {
		c.ShortsProbeBase = DefaultShortsProbeBase
	}
	if c.QuotaTimezone == "" {
		c.QuotaTimezone = DefaultQuotaTimezone
	}
	if c.CacheCleanupInterval <= 0 {
		c.CacheCleanupInterval = 5 * time.Minute
	}
	if c.DetailTTL <= 0 {
		c.DetailTTL = 30 * time.Minute
	}
	if c.SearchTTL <= 0 {
		c.SearchTTL = 10 * time.Minute
	}
	if c.VerdictTTL <= 0 {
		c.VerdictTTL = 7 * 24 * time.Hour
	}
	if c.ChannelMapTTL <= 0 {
		c.ChannelMapTTL = 24 * time.Hour
	}
	if c.ShortThreshold <= 0 {
		c.ShortThreshold = 180 * time.Second
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = 20
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.FeedPageSize <= 0 {
		c.FeedPageSize = 24
	}
	if c.FeedBatchSize <= 0 {
		c.FeedBatchSize = 15
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.FetchTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	return c
}
