package tubeserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (t *tools) searchOptions(input SearchInput) (engine.SearchOptions, error) {
	since, err := toolutil.ParseSince(input.PublishedAfter, t.now())
	if err != nil {
		return engine.SearchOptions{}, err
	}
	return engine.SearchOptions{
		PageToken:         input.PageToken,
		MaxResults:        input.MaxResults,
		Order:             input.Order,
		RegionCode:        input.Region,
		RelevanceLanguage: input.Language,
		PublishedAfter:    since,
		SafeSearch:        input.SafeSearch,
	}, nil
}

func (t *tools) registerSearchVideos(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_videos",
		Description: "Search videos by keywords. Returns hydrated videos (title, channel, duration, views, likes, thumbnail, URL) with deleted, private and short-form videos already removed. Paginate with next_page_token.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, engine.Page[engine.VideoItem], error) {
		if input.Query == "" {
			return nil, engine.Page[engine.VideoItem]{}, errors.New("query is required")
		}
		opts, err := t.searchOptions(input)
		if err != nil {
			return nil, engine.Page[engine.VideoItem]{}, err
		}
		page, err := t.cat.SearchVideos(ctx, input.Query, opts)
		if err != nil {
			return nil, engine.Page[engine.VideoItem]{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}

func (t *tools) registerSearchChannels(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_channels",
		Description: "Search channels by keywords. Returns channel title, description, subscriber and video counts, and the uploads playlist id.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, engine.Page[engine.ChannelItem], error) {
		if input.Query == "" {
			return nil, engine.Page[engine.ChannelItem]{}, errors.New("query is required")
		}
		opts, err := t.searchOptions(input)
		if err != nil {
			return nil, engine.Page[engine.ChannelItem]{}, err
		}
		page, err := t.cat.SearchChannels(ctx, input.Query, opts)
		if err != nil {
			return nil, engine.Page[engine.ChannelItem]{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}

func (t *tools) registerSearchPlaylists(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_playlists",
		Description: "Search playlists by keywords. Returns playlist title, owner channel and item count. Use playlist_videos to list the contents.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, engine.Page[engine.PlaylistItem], error) {
		if input.Query == "" {
			return nil, engine.Page[engine.PlaylistItem]{}, errors.New("query is required")
		}
		opts, err := t.searchOptions(input)
		if err != nil {
			return nil, engine.Page[engine.PlaylistItem]{}, err
		}
		page, err := t.cat.SearchPlaylists(ctx, input.Query, opts)
		if err != nil {
			return nil, engine.Page[engine.PlaylistItem]{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}
