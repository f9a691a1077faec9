package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_tube/internal/engine"
	youtube "google.golang.org/api/youtube/v3"
)

// MaxIDsPerCall is the upstream limit on ids in one detail lookup.
const MaxIDsPerCall = 50

// Videos returns details for ids. Cached entities are served from the
// caller's namespace; the rest are fetched in batches of MaxIDsPerCall and
// cached one entity per key. Result order is unspecified.
func (s *Service) Videos(ctx context.Context, ids []string, credential string) ([]engine.VideoItem, error) {
	return hydrate(ctx, s, s.ns(credential), "video", ids, func(ctx context.Context, batch []string) ([]engine.VideoItem, error) {
		return s.fetchVideos(ctx, url.Values{
			"part": {"snippet,contentDetails,statistics"},
			"id":   {strings.Join(batch, ",")},
		}, credential)
	}, func(v engine.VideoItem) string { return v.ID })
}

// Channels returns details for channel ids. See Videos.
func (s *Service) Channels(ctx context.Context, ids []string, credential string) ([]engine.ChannelItem, error) {
	return hydrate(ctx, s, s.ns(credential), "channel", ids, func(ctx context.Context, batch []string) ([]engine.ChannelItem, error) {
		body, err := s.gw.Call(ctx, "channels", url.Values{
			"part": {"snippet,statistics,contentDetails"},
			"id":   {strings.Join(batch, ",")},
		}, credential)
		if err != nil {
			return nil, err
		}
		var resp youtube.ChannelListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode channels: %w", err)
		}
		out := make([]engine.ChannelItem, 0, len(resp.Items))
		for _, c := range resp.Items {
			if c != nil {
				out = append(out, normalizeChannel(c))
			}
		}
		return out, nil
	}, func(c engine.ChannelItem) string { return c.ID })
}

// Playlists returns details for playlist ids. See Videos.
func (s *Service) Playlists(ctx context.Context, ids []string, credential string) ([]engine.PlaylistItem, error) {
	return hydrate(ctx, s, s.ns(credential), "playlist", ids, func(ctx context.Context, batch []string) ([]engine.PlaylistItem, error) {
		body, err := s.gw.Call(ctx, "playlists", url.Values{
			"part": {"snippet,contentDetails"},
			"id":   {strings.Join(batch, ",")},
		}, credential)
		if err != nil {
			return nil, err
		}
		var resp youtube.PlaylistListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode playlists: %w", err)
		}
		out := make([]engine.PlaylistItem, 0, len(resp.Items))
		for _, p := range resp.Items {
			if p != nil {
				out = append(out, normalizePlaylist(p))
			}
		}
		return out, nil
	}, func(p engine.PlaylistItem) string { return p.ID })
}

// fetchVideos runs one videos call and normalizes the items.
func (s *Service) fetchVideos(ctx context.Context, params url.Values, credential string) ([]engine.VideoItem, error) {
	page, err := s.fetchVideoPage(ctx, params, credential)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *Service) fetchVideoPage(ctx context.Context, params url.Values, credential string) (engine.Page[engine.VideoItem], error) {
	body, err := s.gw.Call(ctx, "videos", params, credential)
	if err != nil {
		return engine.Page[engine.VideoItem]{}, err
	}
	var resp youtube.VideoListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return engine.Page[engine.VideoItem]{}, fmt.Errorf("decode videos: %w", err)
	}
	page := engine.Page[engine.VideoItem]{
		Items:         make([]engine.VideoItem, 0, len(resp.Items)),
		NextPageToken: resp.NextPageToken,
		PrevPageToken: resp.PrevPageToken,
	}
	if resp.PageInfo != nil {
		page.TotalResults = resp.PageInfo.TotalResults
	}
	for _, v := range resp.Items {
		if v != nil {
			page.Items = append(page.Items, normalizeVideo(v))
		}
	}
	return page, nil
}

// hydrate is the shared per-identity cache + batch fetch path.
// A failed batch is skipped as long as another batch succeeded; quota
// exhaustion always propagates.
func hydrate[T any](
	ctx context.Context,
	s *Service,
	cache *engine.Cache,
	kind string,
	ids []string,
	fetch func(context.Context, []string) ([]T, error),
	idOf func(T) string,
) ([]T, error) {
	ids = uniqueNonEmpty(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = kind + ":" + id
	}
	cached := engine.LoadManyJSON[T](ctx, cache, keys, s.cfg.DetailTTL)

	out := make([]T, 0, len(ids))
	var missing []string
	for i, id := range ids {
		if v, ok := cached[keys[i]]; ok {
			out = append(out, v)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	batches := chunk(missing, MaxIDsPerCall)
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failed   int
		firstErr error
	)
	for _, batch := range batches {
		wg.Add(1)
		go func(batch []string) {
			defer wg.Done()
			items, err := fetch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if firstErr == nil || errors.Is(err, engine.ErrQuotaExhausted) {
					firstErr = err
				}
				slog.Warn("hydrate: batch failed",
					slog.String("kind", kind), slog.Int("ids", len(batch)), slog.Any("error", err))
				return
			}
			for _, item := range items {
				id := idOf(item)
				if id == "" {
					continue
				}
				engine.StoreJSON(ctx, cache, kind+":"+id, item, s.cfg.DetailTTL)
				out = append(out, item)
			}
		}(batch)
	}
	wg.Wait()

	if errors.Is(firstErr, engine.ErrQuotaExhausted) || (failed == len(batches) && len(out) == 0) {
		return out, firstErr
	}
	return out, nil
}

// orderByIDs returns items arranged in ids order. Ids without an item are skipped.
func orderByIDs[T any](items []T, ids []string, idOf func(T) string) []T {
	byID := make(map[string]T, len(items))
	for _, it := range items {
		byID[idOf(it)] = it
	}
	out := make([]T, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, it)
	}
	return out
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
