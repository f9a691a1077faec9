package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"golang.org/x/sync/errgroup"
	youtube "google.golang.org/api/youtube/v3"
)

const (
	// maxSubscriptionPages bounds the subscription walk at 50 channels a page.
	maxSubscriptionPages = 20
	// uploadsBatchTTL keeps light timeline pages just long enough for a
	// pagination session to re-read them for free.
	uploadsBatchTTL   = 5 * time.Minute
	subscriptionsTTL  = time.Hour
	feedFetchParallel = 10
	slowFeedThreshold = 5 * time.Second
)

// SubscriptionFeed returns one page of the caller's subscriptions merged into
// a single timeline, newest first. cursor is "" for the first page or the
// Cursor of the previous page. An empty Cursor in the result means the feed
// is exhausted.
func (s *Service) SubscriptionFeed(ctx context.Context, credential, cursor string) (engine.FeedPage, error) {
	if credential == "" {
		return engine.FeedPage{}, fmt.Errorf("subscription feed requires a credential")
	}
	engine.IncrFeedPages()
	// Public reads below go out under the caller's token when no API key is set.
	ctx = engine.WithFallbackCredential(ctx, credential)

	var page engine.FeedPage
	err := engine.TrackOperation(ctx, "subscription_feed", slowFeedThreshold, func(ctx context.Context) error {
		var err error
		page, err = s.subscriptionFeed(ctx, credential, cursor)
		return err
	})
	return page, err
}

func (s *Service) subscriptionFeed(ctx context.Context, credential, cursor string) (engine.FeedPage, error) {

	var buffers []*channelBuffer
	if cursor == "" {
		uploads, err := s.subscribedUploads(ctx, credential)
		if err != nil {
			return engine.FeedPage{}, err
		}
		buffers = s.openBuffers(ctx, uploads)
	} else {
		fc, err := DecodeCursor(cursor)
		if err != nil {
			return engine.FeedPage{}, err
		}
		buffers = s.resumeBuffers(ctx, fc)
	}

	fetch := func(uploadsID, pageToken string) (uploadsBatch, error) {
		return s.uploadsBatch(ctx, uploadsID, pageToken)
	}
	refs := mergeBuffers(buffers, s.cfg.FeedPageSize, fetch)
	next := cursorFromBuffers(buffers).Encode()
	if len(refs) == 0 {
		return engine.FeedPage{Items: []engine.VideoItem{}, Cursor: next}, nil
	}

	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	videos, err := s.Videos(ctx, ids, "")
	if err != nil {
		return engine.FeedPage{}, err
	}
	videos = orderByIDs(videos, ids, func(v engine.VideoItem) string { return v.ID })
	videos = s.FilterShorts(ctx, FilterBroken(videos))

	return engine.FeedPage{Items: videos, Cursor: next}, nil
}

// openBuffers fetches the first light batch of every timeline in parallel.
// A channel whose fetch fails transiently sits this page out and starts from
// its first batch on the next one.
func (s *Service) openBuffers(ctx context.Context, uploadsIDs []string) []*channelBuffer {
	slots := make([]*channelBuffer, len(uploadsIDs))
	var g errgroup.Group
	g.SetLimit(feedFetchParallel)
	for i, uid := range uploadsIDs {
		g.Go(func() error {
			batch, err := s.uploadsBatch(ctx, uid, "")
			if err != nil {
				slog.Warn("feed: skipping channel for this page", slog.String("uploads", uid), slog.Any("error", err))
				if retryLater(err) {
					slots[i] = &channelBuffer{UploadsID: uid, stalled: true}
				}
				return nil
			}
			slots[i] = &channelBuffer{UploadsID: uid, Refs: batch.Refs, NextToken: batch.NextToken}
			return nil
		})
	}
	_ = g.Wait()
	return compactBuffers(slots)
}

// resumeBuffers rebuilds buffers from a cursor by re-reading each channel's
// current batch, which the batch cache usually still holds. A channel whose
// fetch fails transiently is carried to the next cursor unchanged.
func (s *Service) resumeBuffers(ctx context.Context, fc FeedCursor) []*channelBuffer {
	slots := make([]*channelBuffer, len(fc))
	var g errgroup.Group
	g.SetLimit(feedFetchParallel)
	for i, e := range fc {
		g.Go(func() error {
			batch, err := s.uploadsBatch(ctx, e.UploadsID, e.CurrentToken)
			if err != nil {
				slog.Warn("feed: skipping channel for this page", slog.String("uploads", e.UploadsID), slog.Any("error", err))
				if retryLater(err) {
					slots[i] = &channelBuffer{
						UploadsID:    e.UploadsID,
						Offset:       e.Offset,
						CurrentToken: e.CurrentToken,
						NextToken:    e.NextToken,
						stalled:      true,
					}
				}
				return nil
			}
			slots[i] = &channelBuffer{
				UploadsID:    e.UploadsID,
				Refs:         batch.Refs,
				Offset:       min(e.Offset, len(batch.Refs)),
				CurrentToken: e.CurrentToken,
				NextToken:    e.NextToken,
			}
			return nil
		})
	}
	_ = g.Wait()
	return compactBuffers(slots)
}

func compactBuffers(slots []*channelBuffer) []*channelBuffer {
	out := make([]*channelBuffer, 0, len(slots))
	for _, b := range slots {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// uploadsBatch loads one light page (id + publish time) of an uploads playlist.
// Timelines are public, so batches live in the public namespace.
func (s *Service) uploadsBatch(ctx context.Context, uploadsID, pageToken string) (uploadsBatch, error) {
	key := "uploads:" + uploadsID + ":" + pageToken + ":" + strconv.Itoa(s.cfg.FeedBatchSize)
	if b, ok := engine.LoadJSON[uploadsBatch](ctx, s.public, key, uploadsBatchTTL); ok {
		return b, nil
	}

	params := url.Values{
		"part":       {"contentDetails"},
		"playlistId": {uploadsID},
		"maxResults": {strconv.Itoa(s.cfg.FeedBatchSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	body, err := s.gw.Call(ctx, "playlistItems", params, "")
	if err != nil {
		return uploadsBatch{}, err
	}
	var resp youtube.PlaylistItemListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return uploadsBatch{}, fmt.Errorf("decode playlistItems: %w", err)
	}

	batch := uploadsBatch{NextToken: resp.NextPageToken, Refs: make([]VideoRef, 0, len(resp.Items))}
	for _, it := range resp.Items {
		if it == nil || it.ContentDetails == nil || it.ContentDetails.VideoId == "" {
			continue
		}
		published := parseTime(it.ContentDetails.VideoPublishedAt)
		if published.IsZero() {
			continue // private or deleted upload
		}
		batch.Refs = append(batch.Refs, VideoRef{ID: it.ContentDetails.VideoId, PublishedAt: published})
	}
	sort.SliceStable(batch.Refs, func(i, j int) bool {
		return batch.Refs[i].PublishedAt.After(batch.Refs[j].PublishedAt)
	})

	engine.StoreJSON(ctx, s.public, key, batch, uploadsBatchTTL)
	return batch, nil
}

// subscribedUploads resolves the caller's subscriptions to uploads playlist
// ids, in subscription order.
func (s *Service) subscribedUploads(ctx context.Context, credential string) ([]string, error) {
	channelIDs, err := s.subscriptions(ctx, credential)
	if err != nil {
		return nil, err
	}
	return s.uploadsPlaylists(ctx, channelIDs)
}

// subscriptions lists subscribed channel ids, cached per caller.
func (s *Service) subscriptions(ctx context.Context, credential string) ([]string, error) {
	cache := s.ns(credential)
	if ids, ok := engine.LoadJSON[[]string](ctx, cache, "subscriptions", subscriptionsTTL); ok {
		return ids, nil
	}

	var ids []string
	pageToken := ""
	for page := 0; page < maxSubscriptionPages; page++ {
		params := url.Values{
			"part":       {"snippet"},
			"mine":       {"true"},
			"maxResults": {"50"},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		body, err := s.gw.Call(ctx, "subscriptions", params, credential)
		if err != nil {
			return nil, err
		}
		var resp youtube.SubscriptionListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode subscriptions: %w", err)
		}
		for _, sub := range resp.Items {
			if sub == nil || sub.Snippet == nil || sub.Snippet.ResourceId == nil {
				continue
			}
			if id := sub.Snippet.ResourceId.ChannelId; id != "" {
				ids = append(ids, id)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	engine.StoreJSON(ctx, cache, "subscriptions", ids, subscriptionsTTL)
	return ids, nil
}

// uploadsPlaylists maps channel ids to uploads playlist ids. The mapping
// almost never changes, so it is kept for ChannelMapTTL.
func (s *Service) uploadsPlaylists(ctx context.Context, channelIDs []string) ([]string, error) {
	channelIDs = uniqueNonEmpty(channelIDs)
	keys := make([]string, len(channelIDs))
	for i, id := range channelIDs {
		keys[i] = "uploads-of:" + id
	}
	mapping := make(map[string]string, len(channelIDs))
	for key, uid := range engine.LoadManyJSON[string](ctx, s.meta, keys, s.cfg.ChannelMapTTL) {
		mapping[strings.TrimPrefix(key, "uploads-of:")] = uid
	}

	var missing []string
	for _, id := range channelIDs {
		if _, ok := mapping[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		channels, err := s.Channels(ctx, missing, "")
		if err != nil {
			return nil, err
		}
		for _, c := range channels {
			if c.UploadsPlaylistID == "" {
				continue
			}
			mapping[c.ID] = c.UploadsPlaylistID
			engine.StoreJSON(ctx, s.meta, "uploads-of:"+c.ID, c.UploadsPlaylistID, s.cfg.ChannelMapTTL)
		}
	}

	out := make([]string, 0, len(channelIDs))
	for _, id := range channelIDs {
		if uid, ok := mapping[id]; ok {
			out = append(out, uid)
		}
	}
	return out, nil
}
