package tubeserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/engine/catalog"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (t *tools) registerSubscriptionFeed(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "subscription_feed",
		Description: "Chronological feed of the latest uploads from every channel the user subscribes to, newest first, without shorts or broken videos. Pass the returned cursor to get the next page; no cursor means the feed is exhausted. Requires an OAuth access token.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input FeedInput) (*mcp.CallToolResult, engine.FeedPage, error) {
		if input.AccessToken == "" {
			return nil, engine.FeedPage{}, errors.New("access_token is required")
		}
		page, err := t.cat.SubscriptionFeed(ctx, input.AccessToken, input.Cursor)
		if err != nil {
			return nil, engine.FeedPage{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}

func (t *tools) registerFilterVideos(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "filter_videos",
		Description: "Remove short-form videos and deleted/private/ghost entries from a list of videos, keeping the original order.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input FilterInput) (*mcp.CallToolResult, FilterOutput, error) {
		videos := input.Videos
		if !input.KeepBroken {
			videos = catalog.FilterBroken(videos)
		}
		if !input.KeepShorts {
			videos = t.cat.FilterShorts(ctx, videos)
		}
		if videos == nil {
			videos = []engine.VideoItem{}
		}
		return nil, FilterOutput{Items: videos, Removed: len(input.Videos) - len(videos)}, nil
	})
}

func (t *tools) registerQuotaStatus(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "quota_status",
		Description: "Report whether the video API daily quota is exhausted and how many seconds remain until it resets (midnight Pacific time).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ QuotaInput) (*mcp.CallToolResult, engine.QuotaStatus, error) {
		return nil, t.cat.QuotaStatus(), nil
	})
}
