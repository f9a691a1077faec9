package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
	youtube "google.golang.org/api/youtube/v3"
)

type recordedCall struct {
	Endpoint   string
	Params     url.Values
	Credential string
	Fallback   string // credential attached to ctx for keyless gateways
}

// fakeCaller routes calls to a handler and records them.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(endpoint string, params url.Values, credential string) (any, error)
}

func (f *fakeCaller) Call(ctx context.Context, endpoint string, params url.Values, credential string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		Endpoint:   endpoint,
		Params:     params,
		Credential: credential,
		Fallback:   engine.FallbackCredential(ctx),
	})
	f.mu.Unlock()

	resp, err := f.handler(endpoint, params, credential)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func (f *fakeCaller) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if endpoint == "" || c.Endpoint == endpoint {
			n++
		}
	}
	return n
}

func (f *fakeCaller) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// fakeProber answers from a fixed table; ids not in the table fail.
type fakeProber struct {
	mu      sync.Mutex
	answers map[string]bool
	delay   time.Duration
	probed  []string
}

func (p *fakeProber) Probe(ctx context.Context, id string) (bool, error) {
	p.mu.Lock()
	p.probed = append(p.probed, id)
	ans, ok := p.answers[id]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if !ok {
		return false, fmt.Errorf("%w: no answer for %s", ErrProbeInconclusive, id)
	}
	return ans, nil
}

func (p *fakeProber) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.probed)
}

func newTestService(t *testing.T, caller Caller, prober Prober, cfg engine.Config) (*Service, *engine.TieredCache) {
	t.Helper()
	tc := engine.NewTieredCache(engine.CacheOptions{MaxEntries: 10000, CleanupInterval: time.Hour})
	t.Cleanup(func() { tc.Close() })
	return New(Deps{Gateway: caller, Cache: tc, Prober: prober}, cfg), tc
}

// ytVideo builds an upstream video resource.
func ytVideo(id, title, duration string, views uint64, published time.Time) *youtube.Video {
	return &youtube.Video{
		Id: id,
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			ChannelId:   "UC" + id,
			PublishedAt: published.UTC().Format(time.RFC3339),
			Thumbnails: &youtube.ThumbnailDetails{
				High: &youtube.Thumbnail{Url: "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"},
			},
		},
		ContentDetails: &youtube.VideoContentDetails{Duration: duration},
		Statistics:     &youtube.VideoStatistics{ViewCount: views},
	}
}

// longVideo is a regular video that passes every filter without a probe.
func longVideo(id string, published time.Time) *youtube.Video {
	return ytVideo(id, "Video "+id, "PT10M", 100, published)
}

func videoItem(id string, seconds, views int64) engine.VideoItem {
	return engine.VideoItem{
		ID:              id,
		Title:           "Video " + id,
		DurationSeconds: seconds,
		ViewCount:       views,
		Thumbnail:       "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg",
	}
}

func splitIDs(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func itemIDs(videos []engine.VideoItem) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.ID
	}
	return out
}
