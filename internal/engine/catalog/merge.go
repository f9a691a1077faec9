package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// VideoRef is the lightweight form of an upload used for ordering before any
// detail is fetched.
type VideoRef struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

// uploadsBatch is one page of a channel's upload timeline, newest first.
type uploadsBatch struct {
	Refs      []VideoRef `json:"refs"`
	NextToken string     `json:"next_token,omitempty"`
}

// channelBuffer is the merge-time view of one channel's upload timeline.
// Refs[Offset:] are not yet consumed; CurrentToken fetched Refs and NextToken
// continues after them. A stalled buffer had a fetch fail on this page: it
// takes no further part in the merge but keeps its position in the cursor.
type channelBuffer struct {
	UploadsID    string
	Refs         []VideoRef
	Offset       int
	CurrentToken string
	NextToken    string
	stalled      bool
}

func (b *channelBuffer) head() (VideoRef, bool) {
	if b.Offset >= len(b.Refs) {
		return VideoRef{}, false
	}
	return b.Refs[b.Offset], true
}

func (b *channelBuffer) exhausted() bool {
	return b.Offset >= len(b.Refs) && b.NextToken == ""
}

// retryLater reports whether a failed timeline fetch may succeed on a later
// page. Client errors other than 429 mean the playlist is gone or hidden.
func retryLater(err error) bool {
	var ue *engine.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode >= 400 && ue.StatusCode < 500 {
		return ue.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// batchFetcher loads one page of an uploads timeline.
type batchFetcher func(uploadsID, pageToken string) (uploadsBatch, error)

// refill replaces a drained buffer with its next page while one exists. A
// transient failure stalls the buffer until the next page; a permanent one
// ends the channel.
func (b *channelBuffer) refill(fetch batchFetcher) {
	for !b.stalled && b.Offset >= len(b.Refs) && b.NextToken != "" {
		batch, err := fetch(b.UploadsID, b.NextToken)
		if err != nil {
			if !retryLater(err) {
				slog.Warn("feed: next batch gone, ending channel",
					slog.String("uploads", b.UploadsID), slog.Any("error", err))
				b.NextToken = ""
				return
			}
			slog.Warn("feed: next batch failed, retrying on the next page",
				slog.String("uploads", b.UploadsID), slog.Any("error", err))
			b.stalled = true
			return
		}
		b.CurrentToken = b.NextToken
		b.NextToken = batch.NextToken
		b.Refs = batch.Refs
		b.Offset = 0
	}
}

// mergeBuffers is a k-way merge over per-channel timelines. Each step takes
// the newest head across all buffers; ties go to the buffer discovered first.
// It stops at pageSize refs or when every buffer is exhausted. Buffers are
// advanced in place so the caller can build the next cursor from them.
func mergeBuffers(buffers []*channelBuffer, pageSize int, fetch batchFetcher) []VideoRef {
	out := make([]VideoRef, 0, pageSize)
	seen := make(map[string]bool, pageSize)

	for len(out) < pageSize {
		best := -1
		var bestRef VideoRef
		for i, b := range buffers {
			b.refill(fetch)
			ref, ok := b.head()
			if !ok {
				continue
			}
			if best < 0 || ref.PublishedAt.After(bestRef.PublishedAt) {
				best, bestRef = i, ref
			}
		}
		if best < 0 {
			break
		}

		buffers[best].Offset++
		buffers[best].refill(fetch)
		if seen[bestRef.ID] {
			continue
		}
		seen[bestRef.ID] = true
		out = append(out, bestRef)
	}
	return out
}
