package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	youtube "google.golang.org/api/youtube/v3"
)

const (
	defaultSearchResults = 20
	maxSearchResults     = 50
)

// idPage is what a search costs upstream: one page of ids plus paging info.
// Details are hydrated separately so entities are shared with other listings.
type idPage struct {
	IDs   []string `json:"ids"`
	Next  string   `json:"next,omitempty"`
	Prev  string   `json:"prev,omitempty"`
	Total int64    `json:"total,omitempty"`
}

// SearchVideos runs a keyword search for videos. Broken entries and shorts
// are removed from the page.
func (s *Service) SearchVideos(ctx context.Context, query string, opts engine.SearchOptions) (engine.Page[engine.VideoItem], error) {
	ids, err := s.searchIDs(ctx, "video", query, opts)
	if err != nil {
		return engine.Page[engine.VideoItem]{}, err
	}
	videos, err := s.Videos(ctx, ids.IDs, "")
	if err != nil {
		return engine.Page[engine.VideoItem]{}, err
	}
	videos = orderByIDs(videos, ids.IDs, func(v engine.VideoItem) string { return v.ID })
	videos = s.FilterShorts(ctx, FilterBroken(videos))
	return pageOf(videos, ids), nil
}

// SearchChannels runs a keyword search for channels.
func (s *Service) SearchChannels(ctx context.Context, query string, opts engine.SearchOptions) (engine.Page[engine.ChannelItem], error) {
	ids, err := s.searchIDs(ctx, "channel", query, opts)
	if err != nil {
		return engine.Page[engine.ChannelItem]{}, err
	}
	channels, err := s.Channels(ctx, ids.IDs, "")
	if err != nil {
		return engine.Page[engine.ChannelItem]{}, err
	}
	channels = orderByIDs(channels, ids.IDs, func(c engine.ChannelItem) string { return c.ID })
	return pageOf(channels, ids), nil
}

// SearchPlaylists runs a keyword search for playlists.
func (s *Service) SearchPlaylists(ctx context.Context, query string, opts engine.SearchOptions) (engine.Page[engine.PlaylistItem], error) {
	ids, err := s.searchIDs(ctx, "playlist", query, opts)
	if err != nil {
		return engine.Page[engine.PlaylistItem]{}, err
	}
	playlists, err := s.Playlists(ctx, ids.IDs, "")
	if err != nil {
		return engine.Page[engine.PlaylistItem]{}, err
	}
	playlists = orderByIDs(playlists, ids.IDs, func(p engine.PlaylistItem) string { return p.ID })
	return pageOf(playlists, ids), nil
}

func pageOf[T any](items []T, ids idPage) engine.Page[T] {
	if items == nil {
		items = []T{}
	}
	return engine.Page[T]{
		Items:         items,
		NextPageToken: ids.Next,
		PrevPageToken: ids.Prev,
		TotalResults:  ids.Total,
	}
}

// searchIDs resolves one search page to ids, cached by the full parameter set.
func (s *Service) searchIDs(ctx context.Context, kind, query string, opts engine.SearchOptions) (idPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return idPage{}, fmt.Errorf("search query is required")
	}
	params := searchParams(kind, query, opts)
	key := engine.CacheKey("search", params.Encode())
	if p, ok := engine.LoadJSON[idPage](ctx, s.meta, key, s.cfg.SearchTTL); ok {
		return p, nil
	}

	body, err := s.gw.Call(ctx, "search", params, "")
	if err != nil {
		return idPage{}, err
	}
	var resp youtube.SearchListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return idPage{}, fmt.Errorf("decode search: %w", err)
	}

	page := idPage{Next: resp.NextPageToken, Prev: resp.PrevPageToken, IDs: make([]string, 0, len(resp.Items))}
	if resp.PageInfo != nil {
		page.Total = resp.PageInfo.TotalResults
	}
	for _, it := range resp.Items {
		if it == nil || it.Id == nil {
			continue
		}
		var id string
		switch kind {
		case "video":
			id = it.Id.VideoId
		case "channel":
			id = it.Id.ChannelId
		case "playlist":
			id = it.Id.PlaylistId
		}
		if id != "" {
			page.IDs = append(page.IDs, id)
		}
	}

	engine.StoreJSON(ctx, s.meta, key, page, s.cfg.SearchTTL)
	return page, nil
}

func searchParams(kind, query string, opts engine.SearchOptions) url.Values {
	n := opts.MaxResults
	if n <= 0 {
		n = defaultSearchResults
	}
	n = min(n, maxSearchResults)

	params := url.Values{
		"part":       {"snippet"},
		"type":       {kind},
		"q":          {query},
		"maxResults": {strconv.Itoa(n)},
	}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("pageToken", opts.PageToken)
	set("order", opts.Order)
	set("regionCode", opts.RegionCode)
	set("relevanceLanguage", opts.RelevanceLanguage)
	set("safeSearch", opts.SafeSearch)
	if !opts.PublishedAfter.IsZero() {
		params.Set("publishedAfter", opts.PublishedAfter.UTC().Format(time.RFC3339))
	}
	return params
}
