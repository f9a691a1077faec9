package tubeserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errNoIDs = errors.New("ids or id_list is required")

func (t *tools) registerVideoDetails(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_details",
		Description: "Get details for up to a few hundred videos by id: title, description, channel, duration, view/like/comment counts, live status. Results are returned in the order the ids were given; unknown ids are skipped.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input DetailsInput) (*mcp.CallToolResult, VideosOutput, error) {
		ids := toolutil.SplitIDs(input.IDs, input.IDList)
		if len(ids) == 0 {
			return nil, VideosOutput{}, errNoIDs
		}
		items, err := t.cat.Videos(ctx, ids, input.AccessToken)
		if err != nil {
			return nil, VideosOutput{}, toolutil.ToolError(err, t.now())
		}
		return nil, VideosOutput{Items: inOrder(items, ids, videoID)}, nil
	})
}

func (t *tools) registerChannelDetails(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_details",
		Description: "Get details for channels by id: title, description, custom URL, subscriber and video counts, uploads playlist id.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input DetailsInput) (*mcp.CallToolResult, ChannelsOutput, error) {
		ids := toolutil.SplitIDs(input.IDs, input.IDList)
		if len(ids) == 0 {
			return nil, ChannelsOutput{}, errNoIDs
		}
		items, err := t.cat.Channels(ctx, ids, input.AccessToken)
		if err != nil {
			return nil, ChannelsOutput{}, toolutil.ToolError(err, t.now())
		}
		return nil, ChannelsOutput{Items: inOrder(items, ids, channelID)}, nil
	})
}

func (t *tools) registerPlaylistDetails(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "playlist_details",
		Description: "Get details for playlists by id: title, description, owner channel, item count.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input DetailsInput) (*mcp.CallToolResult, PlaylistsOutput, error) {
		ids := toolutil.SplitIDs(input.IDs, input.IDList)
		if len(ids) == 0 {
			return nil, PlaylistsOutput{}, errNoIDs
		}
		items, err := t.cat.Playlists(ctx, ids, input.AccessToken)
		if err != nil {
			return nil, PlaylistsOutput{}, toolutil.ToolError(err, t.now())
		}
		return nil, PlaylistsOutput{Items: inOrder(items, ids, playlistID)}, nil
	})
}

// inOrder arranges hydrated entities in request order; hydration itself
// does not preserve it.
func inOrder[T any](items []T, ids []string, idOf func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(items))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
			delete(byID, id)
		}
	}
	return out
}

func videoID(v engine.VideoItem) string       { return v.ID }
func channelID(c engine.ChannelItem) string   { return c.ID }
func playlistID(p engine.PlaylistItem) string { return p.ID }
