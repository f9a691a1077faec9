package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	youtube "google.golang.org/api/youtube/v3"
)

// fakePlatform serves subscriptions, channels, playlistItems and videos for a
// fixed set of channel timelines. Timelines are newest first.
type fakePlatform struct {
	mu        sync.Mutex
	channels  []string              // subscription order
	timelines map[string][]VideoRef // channel id -> uploads
	shorts    map[string]bool
	failing   map[string]int // uploads playlist id -> status every fetch fails with
	flaky     map[string]int // "uploadsID:pageToken" -> fetches left to fail with 503
	subsPage  int            // subscriptions per page
}

func uploadsOf(channelID string) string { return "UU" + strings.TrimPrefix(channelID, "UC") }

func (p *fakePlatform) handle(endpoint string, params url.Values, credential string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch endpoint {
	case "subscriptions":
		if credential == "" {
			return nil, &engine.UpstreamError{Endpoint: endpoint, StatusCode: 401}
		}
		start, _ := strconv.Atoi(params.Get("pageToken"))
		per := p.subsPage
		if per == 0 {
			per = len(p.channels)
		}
		end := min(start+per, len(p.channels))
		resp := youtube.SubscriptionListResponse{}
		for _, ch := range p.channels[start:end] {
			resp.Items = append(resp.Items, &youtube.Subscription{
				Snippet: &youtube.SubscriptionSnippet{ResourceId: &youtube.ResourceId{ChannelId: ch}},
			})
		}
		if end < len(p.channels) {
			resp.NextPageToken = strconv.Itoa(end)
		}
		return resp, nil

	case "channels":
		resp := youtube.ChannelListResponse{}
		for _, id := range strings.Split(params.Get("id"), ",") {
			resp.Items = append(resp.Items, &youtube.Channel{
				Id:      id,
				Snippet: &youtube.ChannelSnippet{Title: id},
				ContentDetails: &youtube.ChannelContentDetails{
					RelatedPlaylists: &youtube.ChannelContentDetailsRelatedPlaylists{Uploads: uploadsOf(id)},
				},
			})
		}
		return resp, nil

	case "playlistItems":
		uid := params.Get("playlistId")
		if status := p.failing[uid]; status != 0 {
			return nil, &engine.UpstreamError{Endpoint: endpoint, StatusCode: status}
		}
		if key := uid + ":" + params.Get("pageToken"); p.flaky[key] > 0 {
			p.flaky[key]--
			return nil, &engine.UpstreamError{Endpoint: endpoint, StatusCode: 503}
		}
		var tl []VideoRef
		for ch, refs := range p.timelines {
			if uploadsOf(ch) == uid {
				tl = refs
			}
		}
		size, _ := strconv.Atoi(params.Get("maxResults"))
		start, _ := strconv.Atoi(params.Get("pageToken"))
		end := min(start+size, len(tl))
		resp := youtube.PlaylistItemListResponse{}
		for _, r := range tl[start:end] {
			resp.Items = append(resp.Items, &youtube.PlaylistItem{
				ContentDetails: &youtube.PlaylistItemContentDetails{
					VideoId:          r.ID,
					VideoPublishedAt: r.PublishedAt.Format(time.RFC3339),
				},
			})
		}
		if end < len(tl) {
			resp.NextPageToken = strconv.Itoa(end)
		}
		return resp, nil

	case "videos":
		published := map[string]time.Time{}
		for _, refs := range p.timelines {
			for _, r := range refs {
				published[r.ID] = r.PublishedAt
			}
		}
		resp := youtube.VideoListResponse{}
		for _, id := range strings.Split(params.Get("id"), ",") {
			duration := "PT10M"
			if p.shorts[id] {
				duration = "PT30S"
			}
			resp.Items = append(resp.Items, ytVideo(id, "Video "+id, duration, 100, published[id]))
		}
		return resp, nil
	}
	return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
}

func newFeedService(t *testing.T, p *fakePlatform, cfg engine.Config) (*Service, *fakeCaller) {
	t.Helper()
	caller := &fakeCaller{handler: p.handle}
	prober := &fakeProber{answers: map[string]bool{}}
	for _, refs := range p.timelines {
		for _, r := range refs {
			prober.answers[r.ID] = p.shorts[r.ID]
		}
	}
	svc, _ := newTestService(t, caller, prober, cfg)
	return svc, caller
}

func TestSubscriptionFeedScenario(t *testing.T) {
	p := &fakePlatform{
		channels: []string{"UCA", "UCB"},
		timelines: map[string][]VideoRef{
			"UCA": refs("A", 10, 8, 5),
			"UCB": refs("B", 9, 7),
		},
	}
	svc, _ := newFeedService(t, p, engine.Config{FeedPageSize: 3, FeedBatchSize: 15})
	ctx := context.Background()

	page, err := svc.SubscriptionFeed(ctx, "tok", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A@10", "B@9", "A@8"}, itemIDs(page.Items))

	c, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "UUA", c[0].UploadsID)
	assert.Equal(t, 2, c[0].Offset)
	assert.Equal(t, "UUB", c[1].UploadsID)
	assert.Equal(t, 1, c[1].Offset)

	next, err := svc.SubscriptionFeed(ctx, "tok", page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"B@7", "A@5"}, itemIDs(next.Items))
	assert.Empty(t, next.Cursor, "feed should be exhausted")
}

func TestSubscriptionFeedPagesToCompletion(t *testing.T) {
	p := &fakePlatform{
		channels:  []string{"UC1", "UC2", "UC3", "UC4"},
		timelines: map[string][]VideoRef{},
		shorts:    map[string]bool{},
		subsPage:  3,
	}
	var want []VideoRef
	for i, ch := range p.channels {
		var tl []VideoRef
		for j := range 7 + i*2 {
			r := VideoRef{ID: fmt.Sprintf("%s-%d", ch, j), PublishedAt: at(1000 - j*(i+2) - i)}
			tl = append(tl, r)
			if j%4 == 3 {
				p.shorts[r.ID] = true
				continue
			}
			want = append(want, r)
		}
		p.timelines[ch] = tl
	}
	svc, caller := newFeedService(t, p, engine.Config{FeedPageSize: 5, FeedBatchSize: 3})
	ctx := context.Background()

	var got []engine.VideoItem
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 100, "feed did not terminate")
		page, err := svc.SubscriptionFeed(ctx, "tok", cursor)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Items), 5)
		got = append(got, page.Items...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	require.Len(t, got, len(want))
	seen := map[string]bool{}
	for i, v := range got {
		assert.False(t, p.shorts[v.ID], "short %s leaked into feed", v.ID)
		assert.False(t, seen[v.ID], "duplicate %s", v.ID)
		seen[v.ID] = true
		if i > 0 {
			assert.False(t, v.PublishedAt.After(got[i-1].PublishedAt), "out of order at %d", i)
		}
	}
	for _, r := range want {
		assert.True(t, seen[r.ID], "missing %s", r.ID)
	}

	assert.Equal(t, 2, caller.count("subscriptions"), "subscriptions paged once, then cached")
	assert.Equal(t, 1, caller.count("channels"), "uploads mapping resolved in one batch")
}

func TestSubscriptionFeedSubscriptionsCachedPerUser(t *testing.T) {
	p := &fakePlatform{
		channels:  []string{"UCA"},
		timelines: map[string][]VideoRef{"UCA": refs("A", 3, 2, 1)},
	}
	svc, caller := newFeedService(t, p, engine.Config{FeedPageSize: 2})
	ctx := context.Background()

	_, err := svc.SubscriptionFeed(ctx, "tok-1", "")
	require.NoError(t, err)
	_, err = svc.SubscriptionFeed(ctx, "tok-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, caller.count("subscriptions"))

	_, err = svc.SubscriptionFeed(ctx, "tok-2", "")
	require.NoError(t, err)
	assert.Equal(t, 2, caller.count("subscriptions"), "another user must not see tok-1's subscriptions")
	assert.Equal(t, 1, caller.count("channels"), "channel mapping is shared")
}

func TestSubscriptionFeedSkipsFailingChannelForOnePage(t *testing.T) {
	p := &fakePlatform{
		channels: []string{"UCA", "UCB"},
		timelines: map[string][]VideoRef{
			"UCA": refs("A", 10, 8),
			"UCB": refs("B", 9),
		},
		failing: map[string]int{"UUB": 500},
	}
	svc, _ := newFeedService(t, p, engine.Config{FeedPageSize: 10})
	ctx := context.Background()

	page, err := svc.SubscriptionFeed(ctx, "tok", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A@10", "A@8"}, itemIDs(page.Items))

	c, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, CursorEntry{UploadsID: "UUB"}, c[0])

	p.mu.Lock()
	p.failing = nil
	p.mu.Unlock()

	next, err := svc.SubscriptionFeed(ctx, "tok", page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"B@9"}, itemIDs(next.Items))
	assert.Empty(t, next.Cursor)
}

func TestSubscriptionFeedDropsMissingPlaylist(t *testing.T) {
	p := &fakePlatform{
		channels: []string{"UCA", "UCB"},
		timelines: map[string][]VideoRef{
			"UCA": refs("A", 10, 8),
			"UCB": refs("B", 9),
		},
		failing: map[string]int{"UUB": 404},
	}
	svc, _ := newFeedService(t, p, engine.Config{FeedPageSize: 10})

	page, err := svc.SubscriptionFeed(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A@10", "A@8"}, itemIDs(page.Items))
	assert.Empty(t, page.Cursor)
}

func TestSubscriptionFeedCarriesCursorEntryOnResumeFailure(t *testing.T) {
	p := &fakePlatform{
		channels: []string{"UCA", "UCB"},
		timelines: map[string][]VideoRef{
			"UCA": refs("A", 10, 8, 5),
			"UCB": refs("B", 9, 7),
		},
	}
	svc, _ := newFeedService(t, p, engine.Config{FeedPageSize: 3, FeedBatchSize: 15})
	ctx := context.Background()

	page, err := svc.SubscriptionFeed(ctx, "tok", "")
	require.NoError(t, err)
	before, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)

	// Evict A's batch so resuming has to go upstream, and fail that fetch.
	svc.public.Delete("uploads:UUA::15")
	p.mu.Lock()
	p.failing = map[string]int{"UUA": 503}
	p.mu.Unlock()

	next, err := svc.SubscriptionFeed(ctx, "tok", page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"B@7"}, itemIDs(next.Items))
	after, err := DecodeCursor(next.Cursor)
	require.NoError(t, err)
	assert.Equal(t, FeedCursor{before[0]}, after, "A's entry must survive unchanged")

	p.mu.Lock()
	p.failing = nil
	p.mu.Unlock()

	last, err := svc.SubscriptionFeed(ctx, "tok", next.Cursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"A@5"}, itemIDs(last.Items))
	assert.Empty(t, last.Cursor)
}

// A single failed next-batch fetch must not cost the channel its older uploads.
func TestSubscriptionFeedRecoversFromFailedNextBatch(t *testing.T) {
	p := &fakePlatform{
		channels: []string{"UCA", "UCB"},
		timelines: map[string][]VideoRef{
			"UCA": refs("A", 100, 90, 80, 70, 60, 50),
			"UCB": refs("B", 95, 85, 75, 65, 55, 45, 35, 25),
		},
		flaky: map[string]int{"UUA:2": 1},
	}
	svc, _ := newFeedService(t, p, engine.Config{FeedPageSize: 4, FeedBatchSize: 2})
	ctx := context.Background()

	seen := map[string]bool{}
	cursor := ""
	for pages := 0; ; pages++ {
		require.Less(t, pages, 50, "feed did not terminate")
		page, err := svc.SubscriptionFeed(ctx, "tok", cursor)
		require.NoError(t, err)
		for _, v := range page.Items {
			assert.False(t, seen[v.ID], "duplicate %s", v.ID)
			seen[v.ID] = true
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	for _, tl := range p.timelines {
		for _, r := range tl {
			assert.True(t, seen[r.ID], "%s never delivered", r.ID)
		}
	}
}

func TestSubscriptionFeedPublicCallsCarryCallerCredential(t *testing.T) {
	p := &fakePlatform{
		channels: []string{"UCA", "UCB"},
		timelines: map[string][]VideoRef{
			"UCA": refs("A", 10),
			"UCB": refs("B", 9),
		},
	}
	svc, caller := newFeedService(t, p, engine.Config{FeedPageSize: 10})

	_, err := svc.SubscriptionFeed(context.Background(), "tok", "")
	require.NoError(t, err)

	caller.mu.Lock()
	defer caller.mu.Unlock()
	endpoints := map[string]bool{}
	for _, c := range caller.calls {
		endpoints[c.Endpoint] = true
		assert.Equal(t, "tok", c.Fallback, "%s call lost the caller credential", c.Endpoint)
	}
	assert.True(t, endpoints["playlistItems"], "no uploads call recorded")
}

func TestSubscriptionFeedNoSubscriptions(t *testing.T) {
	p := &fakePlatform{timelines: map[string][]VideoRef{}}
	svc, _ := newFeedService(t, p, engine.Config{})

	page, err := svc.SubscriptionFeed(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Cursor)
}

func TestSubscriptionFeedRequiresCredential(t *testing.T) {
	svc, caller := newFeedService(t, &fakePlatform{}, engine.Config{})
	_, err := svc.SubscriptionFeed(context.Background(), "", "")
	assert.Error(t, err)
	assert.Zero(t, caller.count(""))
}

func TestSubscriptionFeedInvalidCursor(t *testing.T) {
	svc, caller := newFeedService(t, &fakePlatform{}, engine.Config{})
	_, err := svc.SubscriptionFeed(context.Background(), "tok", "%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)
	assert.Zero(t, caller.count(""))
}

func TestSubscriptionFeedQuotaPropagates(t *testing.T) {
	quota := &engine.QuotaExhaustedError{ResetAt: epoch}
	caller := &fakeCaller{handler: func(string, url.Values, string) (any, error) { return nil, quota }}
	svc, _ := newTestService(t, caller, nil, engine.Config{})

	_, err := svc.SubscriptionFeed(context.Background(), "tok", "")
	assert.ErrorIs(t, err, engine.ErrQuotaExhausted)
}
