package engine

import "time"

// --- Normalized entities ---

// VideoItem is a normalized video. Missing upstream fields stay at zero values.
type VideoItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	ChannelID       string    `json:"channel_id,omitempty"`
	ChannelTitle    string    `json:"channel_title,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
	Duration        string    `json:"duration,omitempty"` // ISO 8601 as sent upstream
	DurationSeconds int64     `json:"duration_seconds"`
	ViewCount       int64     `json:"view_count"`
	LikeCount       int64     `json:"like_count,omitempty"`
	CommentCount    int64     `json:"comment_count,omitempty"`
	Thumbnail       string    `json:"thumbnail,omitempty"`
	LiveBroadcast   string    `json:"live_broadcast,omitempty"` // none, live, upcoming
	URL             string    `json:"url"`
}

// ChannelItem is a normalized channel.
type ChannelItem struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	CustomURL         string `json:"custom_url,omitempty"`
	Thumbnail         string `json:"thumbnail,omitempty"`
	SubscriberCount   int64  `json:"subscriber_count"`
	VideoCount        int64  `json:"video_count"`
	UploadsPlaylistID string `json:"uploads_playlist_id,omitempty"`
	URL               string `json:"url"`
}

// PlaylistItem is a normalized playlist.
type PlaylistItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelID    string    `json:"channel_id,omitempty"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
	ItemCount    int64     `json:"item_count"`
	PublishedAt  time.Time `json:"published_at"`
	URL          string    `json:"url"`
}

// CommentItem is a normalized top-level comment.
type CommentItem struct {
	ID           string    `json:"id"`
	Author       string    `json:"author"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Text         string    `json:"text"`
	LikeCount    int64     `json:"like_count"`
	ReplyCount   int64     `json:"reply_count"`
	PublishedAt  time.Time `json:"published_at"`
}

// Page is one page of a paginated upstream listing.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"next_page_token,omitempty"`
	PrevPageToken string `json:"prev_page_token,omitempty"`
	TotalResults  int64  `json:"total_results,omitempty"`
}

// FeedPage is one page of the merged subscription feed.
// An empty Cursor means the feed is exhausted.
type FeedPage struct {
	Items  []VideoItem `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
}

// SearchOptions narrows a keyword search.
type SearchOptions struct {
	PageToken         string
	MaxResults        int
	Order             string // relevance, date, viewCount, rating
	RegionCode        string
	RelevanceLanguage string
	PublishedAfter    time.Time
	SafeSearch        string
}

// QuotaStatus describes the quota breaker for the UI countdown.
type QuotaStatus struct {
	Exhausted      bool      `json:"exhausted"`
	ResetAt        time.Time `json:"reset_at,omitempty"`
	SecondsToReset int64     `json:"seconds_to_reset,omitempty"`
}
