package tubeserver

import (
	"context"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Catalog is the read API the tools are served from. *catalog.Service
// implements it.
type Catalog interface {
	SearchVideos(ctx context.Context, query string, opts engine.SearchOptions) (engine.Page[engine.VideoItem], error)
	SearchChannels(ctx context.Context, query string, opts engine.SearchOptions) (engine.Page[engine.ChannelItem], error)
	SearchPlaylists(ctx context.Context, query string, opts engine.SearchOptions) (engine.Page[engine.PlaylistItem], error)

	Videos(ctx context.Context, ids []string, credential string) ([]engine.VideoItem, error)
	Channels(ctx context.Context, ids []string, credential string) ([]engine.ChannelItem, error)
	Playlists(ctx context.Context, ids []string, credential string) ([]engine.PlaylistItem, error)

	Trending(ctx context.Context, category, region, pageToken string) (engine.Page[engine.VideoItem], error)
	PlaylistVideos(ctx context.Context, playlistID, pageToken, credential string) (engine.Page[engine.VideoItem], error)
	Comments(ctx context.Context, videoID, pageToken string) (engine.Page[engine.CommentItem], error)

	SubscriptionFeed(ctx context.Context, credential, cursor string) (engine.FeedPage, error)
	FilterShorts(ctx context.Context, videos []engine.VideoItem) []engine.VideoItem
	QuotaStatus() engine.QuotaStatus
}

// tools holds what every handler needs.
type tools struct {
	cat Catalog
	now func() time.Time
}

// RegisterTools registers all video tools on the given MCP server and
// returns how many were added.
func RegisterTools(server *mcp.Server, cat Catalog) int {
	t := &tools{cat: cat, now: time.Now}
	register := []func(*mcp.Server){
		t.registerSearchVideos,
		t.registerSearchChannels,
		t.registerSearchPlaylists,
		t.registerVideoDetails,
		t.registerChannelDetails,
		t.registerPlaylistDetails,
		t.registerTrending,
		t.registerPlaylistVideos,
		t.registerComments,
		t.registerSubscriptionFeed,
		t.registerFilterVideos,
		t.registerQuotaStatus,
	}
	for _, r := range register {
		r(server)
	}
	return len(register)
}
