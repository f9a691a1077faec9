package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
	youtube "google.golang.org/api/youtube/v3"
)

const (
	defaultTrendingRegion = "US"
	playlistPageSize      = 50
	commentsPageSize      = 20
)

// Trending returns one page of the most popular chart for region, optionally
// narrowed to a video category. Broken entries and shorts are removed.
func (s *Service) Trending(ctx context.Context, category, region, pageToken string) (engine.Page[engine.VideoItem], error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = defaultTrendingRegion
	}
	params := url.Values{
		"part":       {"snippet,contentDetails,statistics"},
		"chart":      {"mostPopular"},
		"regionCode": {region},
		"maxResults": {strconv.Itoa(s.cfg.FeedPageSize)},
	}
	if category != "" {
		params.Set("videoCategoryId", category)
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	key := engine.CacheKey("trending", params.Encode())
	var page engine.Page[engine.VideoItem]
	if ids, ok := engine.LoadJSON[idPage](ctx, s.meta, key, s.cfg.SearchTTL); ok {
		videos, err := s.Videos(ctx, ids.IDs, "")
		if err != nil {
			return engine.Page[engine.VideoItem]{}, err
		}
		page = pageOf(orderByIDs(videos, ids.IDs, func(v engine.VideoItem) string { return v.ID }), ids)
	} else {
		fetched, err := s.fetchVideoPage(ctx, params, "")
		if err != nil {
			return engine.Page[engine.VideoItem]{}, err
		}
		// The chart already carries full details; store them per identity
		// so a replay of this page costs nothing upstream.
		ids := idPage{Next: fetched.NextPageToken, Prev: fetched.PrevPageToken, Total: fetched.TotalResults}
		for _, v := range fetched.Items {
			if v.ID == "" {
				continue
			}
			engine.StoreJSON(ctx, s.public, "video:"+v.ID, v, s.cfg.DetailTTL)
			ids.IDs = append(ids.IDs, v.ID)
		}
		engine.StoreJSON(ctx, s.meta, key, ids, s.cfg.SearchTTL)
		page = fetched
	}

	page.Items = s.FilterShorts(ctx, FilterBroken(page.Items))
	return page, nil
}

// PlaylistVideos lists one page of a playlist's videos in playlist order.
// Broken entries are dropped; shorts are kept since the playlist owner chose them.
func (s *Service) PlaylistVideos(ctx context.Context, playlistID, pageToken, credential string) (engine.Page[engine.VideoItem], error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return engine.Page[engine.VideoItem]{}, fmt.Errorf("playlist id is required")
	}
	cache := s.ns(credential)
	key := "playlist-items:" + playlistID + ":" + pageToken

	ids, ok := engine.LoadJSON[idPage](ctx, cache, key, s.cfg.SearchTTL)
	if !ok {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {playlistID},
			"maxResults": {strconv.Itoa(playlistPageSize)},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		body, err := s.gw.Call(ctx, "playlistItems", params, credential)
		if err != nil {
			return engine.Page[engine.VideoItem]{}, err
		}
		var resp youtube.PlaylistItemListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return engine.Page[engine.VideoItem]{}, fmt.Errorf("decode playlistItems: %w", err)
		}
		ids = idPage{Next: resp.NextPageToken, Prev: resp.PrevPageToken}
		if resp.PageInfo != nil {
			ids.Total = resp.PageInfo.TotalResults
		}
		for _, it := range resp.Items {
			if it != nil && it.ContentDetails != nil && it.ContentDetails.VideoId != "" {
				ids.IDs = append(ids.IDs, it.ContentDetails.VideoId)
			}
		}
		engine.StoreJSON(ctx, cache, key, ids, s.cfg.SearchTTL)
	}

	videos, err := s.Videos(ctx, ids.IDs, credential)
	if err != nil {
		return engine.Page[engine.VideoItem]{}, err
	}
	videos = orderByIDs(videos, ids.IDs, func(v engine.VideoItem) string { return v.ID })
	return pageOf(FilterBroken(videos), ids), nil
}

// Comments lists one page of top-level comments on a video, most relevant first.
func (s *Service) Comments(ctx context.Context, videoID, pageToken string) (engine.Page[engine.CommentItem], error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return engine.Page[engine.CommentItem]{}, fmt.Errorf("video id is required")
	}
	key := "comments:" + videoID + ":" + pageToken
	if page, ok := engine.LoadJSON[engine.Page[engine.CommentItem]](ctx, s.public, key, s.cfg.SearchTTL); ok {
		return page, nil
	}

	params := url.Values{
		"part":       {"snippet"},
		"videoId":    {videoID},
		"order":      {"relevance"},
		"textFormat": {"plainText"},
		"maxResults": {strconv.Itoa(commentsPageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	body, err := s.gw.Call(ctx, "commentThreads", params, "")
	if err != nil {
		return engine.Page[engine.CommentItem]{}, err
	}
	var resp youtube.CommentThreadListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return engine.Page[engine.CommentItem]{}, fmt.Errorf("decode commentThreads: %w", err)
	}

	page := engine.Page[engine.CommentItem]{
		Items:         make([]engine.CommentItem, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}
	for _, t := range resp.Items {
		if t != nil {
			page.Items = append(page.Items, normalizeComment(t))
		}
	}

	engine.StoreJSON(ctx, s.public, key, page, s.cfg.SearchTTL)
	return page, nil
}
