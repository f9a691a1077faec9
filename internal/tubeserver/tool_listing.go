package tubeserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/anatolykoptev/go_tube/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (t *tools) registerTrending(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "trending",
		Description: "List the most popular videos for a region, optionally for one video category. Short-form and broken videos are removed.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input TrendingInput) (*mcp.CallToolResult, engine.Page[engine.VideoItem], error) {
		page, err := t.cat.Trending(ctx, input.Category, input.Region, input.PageToken)
		if err != nil {
			return nil, engine.Page[engine.VideoItem]{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}

func (t *tools) registerPlaylistVideos(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "playlist_videos",
		Description: "List the videos of a playlist in playlist order, 50 per page. Deleted and private entries are removed.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input PlaylistVideosInput) (*mcp.CallToolResult, engine.Page[engine.VideoItem], error) {
		if input.PlaylistID == "" {
			return nil, engine.Page[engine.VideoItem]{}, errors.New("playlist_id is required")
		}
		page, err := t.cat.PlaylistVideos(ctx, input.PlaylistID, input.PageToken, input.AccessToken)
		if err != nil {
			return nil, engine.Page[engine.VideoItem]{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}

func (t *tools) registerComments(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "comments",
		Description: "List top-level comments on a video, most relevant first, as plain text with author, likes and reply count.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input CommentsInput) (*mcp.CallToolResult, engine.Page[engine.CommentItem], error) {
		if input.VideoID == "" {
			return nil, engine.Page[engine.CommentItem]{}, errors.New("video_id is required")
		}
		page, err := t.cat.Comments(ctx, input.VideoID, input.PageToken)
		if err != nil {
			return nil, engine.Page[engine.CommentItem]{}, toolutil.ToolError(err, t.now())
		}
		return nil, page, nil
	})
}
