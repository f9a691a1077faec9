package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	youtube "google.golang.org/api/youtube/v3"
)

func videosHandler(fail func(batch []string) error) func(string, url.Values, string) (any, error) {
	return func(endpoint string, params url.Values, _ string) (any, error) {
		if endpoint != "videos" {
			return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
		}
		batch := strings.Split(params.Get("id"), ",")
		if fail != nil {
			if err := fail(batch); err != nil {
				return nil, err
			}
		}
		resp := youtube.VideoListResponse{}
		for _, id := range batch {
			if strings.HasPrefix(id, "gone") {
				continue
			}
			resp.Items = append(resp.Items, longVideo(id, epoch))
		}
		return resp, nil
	}
}

func manyIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("v%03d", i)
	}
	return out
}

func TestVideosBatchesAndCaches(t *testing.T) {
	caller := &fakeCaller{handler: videosHandler(nil)}
	svc, _ := newTestService(t, caller, nil, engine.Config{})
	ctx := context.Background()

	want := manyIDs(120)
	got, err := svc.Videos(ctx, want, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, want, itemIDs(got))
	assert.Equal(t, 3, caller.count("videos"), "120 ids should take ceil(120/50) calls")
	for _, c := range caller.calls {
		assert.LessOrEqual(t, len(strings.Split(c.Params.Get("id"), ",")), MaxIDsPerCall)
	}

	caller.reset()
	again, err := svc.Videos(ctx, want, "")
	require.NoError(t, err)
	assert.Len(t, again, 120)
	assert.Zero(t, caller.count(""), "second lookup should be fully cached")

	// A mix of cached and new ids only fetches the new ones.
	_, err = svc.Videos(ctx, append(want[:10:10], "new1", "new2"), "")
	require.NoError(t, err)
	require.Equal(t, 1, caller.count("videos"))
	assert.Equal(t, "new1,new2", caller.calls[0].Params.Get("id"))
}

func TestVideosDedupesAndSkipsEmpty(t *testing.T) {
	caller := &fakeCaller{handler: videosHandler(nil)}
	svc, _ := newTestService(t, caller, nil, engine.Config{})

	got, err := svc.Videos(context.Background(), []string{"a", "", "a", " b "}, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, itemIDs(got))

	none, err := svc.Videos(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, 1, caller.count(""))
}

func TestVideosUnknownIDsSkipped(t *testing.T) {
	caller := &fakeCaller{handler: videosHandler(nil)}
	svc, _ := newTestService(t, caller, nil, engine.Config{})

	got, err := svc.Videos(context.Background(), []string{"a", "gone1"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, itemIDs(got))
}

func TestVideosPartialBatchFailure(t *testing.T) {
	boom := &engine.UpstreamError{Endpoint: "videos", StatusCode: 500}
	caller := &fakeCaller{handler: videosHandler(func(batch []string) error {
		if batch[0] == "v050" {
			return boom
		}
		return nil
	})}
	svc, _ := newTestService(t, caller, nil, engine.Config{})

	got, err := svc.Videos(context.Background(), manyIDs(100), "")
	require.NoError(t, err, "one good batch is enough for a partial result")
	assert.Len(t, got, 50)
}

func TestVideosAllBatchesFail(t *testing.T) {
	boom := &engine.UpstreamError{Endpoint: "videos", StatusCode: 500}
	caller := &fakeCaller{handler: videosHandler(func([]string) error { return boom })}
	svc, _ := newTestService(t, caller, nil, engine.Config{})

	_, err := svc.Videos(context.Background(), manyIDs(60), "")
	var ue *engine.UpstreamError
	assert.True(t, errors.As(err, &ue))
}

func TestVideosQuotaAlwaysPropagates(t *testing.T) {
	quota := &engine.QuotaExhaustedError{ResetAt: epoch.Add(time.Hour)}
	caller := &fakeCaller{handler: videosHandler(func(batch []string) error {
		if batch[0] == "v050" {
			return quota
		}
		return nil
	})}
	svc, _ := newTestService(t, caller, nil, engine.Config{})

	_, err := svc.Videos(context.Background(), manyIDs(100), "")
	assert.ErrorIs(t, err, engine.ErrQuotaExhausted)
}

func TestVideosNamespacedByCredential(t *testing.T) {
	caller := &fakeCaller{handler: videosHandler(nil)}
	svc, _ := newTestService(t, caller, nil, engine.Config{})
	ctx := context.Background()

	_, err := svc.Videos(ctx, []string{"a"}, "token-1")
	require.NoError(t, err)
	_, err = svc.Videos(ctx, []string{"a"}, "token-2")
	require.NoError(t, err)
	_, err = svc.Videos(ctx, []string{"a"}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, caller.count("videos"), "each identity has its own cache")

	assert.Equal(t, "token-1", caller.calls[0].Credential)

	_, err = svc.Videos(ctx, []string{"a"}, "token-1")
	require.NoError(t, err)
	assert.Equal(t, 3, caller.count("videos"))
}

func TestChannelsAndPlaylists(t *testing.T) {
	caller := &fakeCaller{handler: func(endpoint string, params url.Values, _ string) (any, error) {
		switch endpoint {
		case "channels":
			return youtube.ChannelListResponse{Items: []*youtube.Channel{{
				Id:             "UC1",
				Snippet:        &youtube.ChannelSnippet{Title: "Chan"},
				ContentDetails: &youtube.ChannelContentDetails{RelatedPlaylists: &youtube.ChannelContentDetailsRelatedPlaylists{Uploads: "UU1"}},
				Statistics:     &youtube.ChannelStatistics{SubscriberCount: 42},
			}}}, nil
		case "playlists":
			return youtube.PlaylistListResponse{Items: []*youtube.Playlist{{
				Id:             "PL1",
				Snippet:        &youtube.PlaylistSnippet{Title: "List"},
				ContentDetails: &youtube.PlaylistContentDetails{ItemCount: 7},
			}}}, nil
		}
		return nil, fmt.Errorf("unexpected endpoint %s", endpoint)
	}}
	svc, _ := newTestService(t, caller, nil, engine.Config{})
	ctx := context.Background()

	chans, err := svc.Channels(ctx, []string{"UC1"}, "")
	require.NoError(t, err)
	require.Len(t, chans, 1)
	assert.Equal(t, "UU1", chans[0].UploadsPlaylistID)
	assert.Equal(t, int64(42), chans[0].SubscriberCount)

	lists, err := svc.Playlists(ctx, []string{"PL1"}, "")
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, int64(7), lists[0].ItemCount)
}

func TestOrderByIDs(t *testing.T) {
	items := []engine.VideoItem{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	got := orderByIDs(items, []string{"a", "x", "b", "c", "a"}, func(v engine.VideoItem) string { return v.ID })
	assert.Equal(t, []string{"a", "b", "c"}, itemIDs(got))
}

func TestChunk(t *testing.T) {
	assert.Len(t, chunk(manyIDs(100), 50), 2)
	assert.Len(t, chunk(manyIDs(101), 50), 3)
	assert.Empty(t, chunk(nil, 50))
}
