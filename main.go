// go_tube: video platform MCP server.
//
// Exposes search, details, trending, playlist, comment and subscription feed
// tools over the YouTube Data API, with shorts and broken videos filtered out
// and every upstream call guarded by a daily-quota breaker and a two-tier cache.
// Runs as HTTP MCP server or stdio transport.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/catalog"
	"github.com/anatolykoptev/go_tube/internal/tubeserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(env.Str("LOG_LEVEL", "info")),
	})))

	svc, cache := initEngine()
	defer cache.Close()

	slog.Info("starting go_tube",
		slog.String("port", mcpPort),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_tube",
		Version: version,
	}, nil)

	n := tubeserver.RegisterTools(server, svc)
	slog.Info("tools registered", slog.Int("count", n))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_tube",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 120 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() (*catalog.Service, *engine.TieredCache) {
	c := engine.Config{
		YouTubeAPIBase:         env.Str("YOUTUBE_API_BASE", engine.DefaultYouTubeAPIBase),
		YouTubeAPIKey:          env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallbacks: env.List("YOUTUBE_API_KEY_FALLBACKS", ""),
		ShortsProbeBase:        env.Str("SHORTS_PROBE_BASE", engine.DefaultShortsProbeBase),
		RedisURL:               env.Str("REDIS_URL", ""),
		DatabaseURL:            env.Str("DATABASE_URL", ""),
		QuotaTimezone:          env.Str("QUOTA_TIMEZONE", engine.DefaultQuotaTimezone),
		CacheMaxEntries:        env.Int("CACHE_MAX_ENTRIES", 10000),
		CacheCleanupInterval:   env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		DetailTTL:              env.Duration("DETAIL_TTL", 30*time.Minute),
		SearchTTL:              env.Duration("SEARCH_TTL", 10*time.Minute),
		VerdictTTL:             env.Duration("VERDICT_TTL", 7*24*time.Hour),
		ChannelMapTTL:          env.Duration("CHANNEL_MAP_TTL", 24*time.Hour),
		ShortThreshold:         env.Duration("SHORT_THRESHOLD", 180*time.Second),
		ProbeConcurrency:       env.Int("PROBE_CONCURRENCY", 20),
		ProbeTimeout:           env.Duration("PROBE_TIMEOUT", 2*time.Second),
		ProbeRate:              env.Float("PROBE_RATE", 0),
		FeedPageSize:           env.Int("FEED_PAGE_SIZE", 24),
		FeedBatchSize:          env.Int("FEED_BATCH_SIZE", 15),
		FetchTimeout:           env.Duration("FETCH_TIMEOUT", 15*time.Second),
	}
	c.HTTPClient = &http.Client{
		Timeout: c.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 25,
			IdleConnTimeout:     60 * time.Second,
		},
	}
	c = c.WithDefaults()

	if c.YouTubeAPIKey == "" {
		slog.Warn("YOUTUBE_API_KEY not set, public tools need one; the subscription feed falls back to the caller token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cache := engine.NewTieredCache(engine.CacheOptions{
		MaxEntries:      c.CacheMaxEntries,
		CleanupInterval: c.CacheCleanupInterval,
		Remote:          engine.OpenRemote(ctx, c.RedisURL, c.DatabaseURL),
	})

	quota, err := engine.NewQuotaBreaker(c.QuotaTimezone, nil)
	if err != nil {
		slog.Warn("quota timezone invalid, falling back", slog.Any("error", err))
		quota, _ = engine.NewQuotaBreaker(engine.DefaultQuotaTimezone, nil)
	}

	gw := engine.NewGateway(engine.GatewayOptions{
		BaseURL:    c.YouTubeAPIBase,
		APIKeys:    append([]string{c.YouTubeAPIKey}, c.YouTubeAPIKeyFallbacks...),
		HTTPClient: c.HTTPClient,
		Quota:      quota,
	})

	svc := catalog.New(catalog.Deps{
		Gateway: gw,
		Cache:   cache,
		Prober:  catalog.NewHTTPProber(c.ShortsProbeBase, c.HTTPClient.Transport),
		Quota:   quota,
	}, c)
	slog.Info("engine initialized",
		slog.Int("api_keys", 1+len(c.YouTubeAPIKeyFallbacks)),
		slog.Int("probe_concurrency", c.ProbeConcurrency))
	return svc, cache
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
