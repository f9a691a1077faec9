package catalog

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned for a feed cursor that does not decode.
var ErrInvalidCursor = errors.New("invalid feed cursor")

// CursorEntry is the resumable state of one channel.
type CursorEntry struct {
	UploadsID    string `json:"u"`
	Offset       int    `json:"o"`
	CurrentToken string `json:"c,omitempty"`
	NextToken    string `json:"n,omitempty"`
}

// FeedCursor describes where a merged feed left off, one entry per channel
// still producing content.
type FeedCursor []CursorEntry

// cursorFromBuffers keeps every buffer with unconsumed refs or a continuation,
// and every stalled buffer as it stood.
func cursorFromBuffers(buffers []*channelBuffer) FeedCursor {
	var c FeedCursor
	for _, b := range buffers {
		if b.exhausted() && !b.stalled {
			continue
		}
		c = append(c, CursorEntry{
			UploadsID:    b.UploadsID,
			Offset:       b.Offset,
			CurrentToken: b.CurrentToken,
			NextToken:    b.NextToken,
		})
	}
	return c
}

// Encode returns the opaque string form. An empty cursor encodes to "".
func (c FeedCursor) Encode() string {
	if len(c) == 0 {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a string produced by Encode.
func DecodeCursor(s string) (FeedCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c FeedCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	for _, e := range c {
		if e.UploadsID == "" || e.Offset < 0 {
			return nil, fmt.Errorf("%w: bad entry", ErrInvalidCursor)
		}
	}
	return c, nil
}
