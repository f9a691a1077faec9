package tubeserver

import "github.com/anatolykoptev/go_tube/internal/engine"

// --- Tool inputs ---

// SearchInput is shared by the three search tools.
type SearchInput struct {
	Query          string `json:"query" jsonschema:"Search keywords"`
	PageToken      string `json:"page_token,omitempty" jsonschema:"Page token from a previous result (next_page_token)"`
	MaxResults     int    `json:"max_results,omitempty" jsonschema:"Results per page, 1-50 (default 20)"`
	Order          string `json:"order,omitempty" jsonschema:"Sort order: relevance (default), date, viewCount, rating"`
	Region         string `json:"region,omitempty" jsonschema:"ISO 3166-1 alpha-2 region code, e.g. US, DE"`
	Language       string `json:"language,omitempty" jsonschema:"Prefer results in this ISO 639-1 language"`
	PublishedAfter string `json:"published_after,omitempty" jsonschema:"Only results published after this time: RFC3339, YYYY-MM-DD, or a window like 7d or 12h"`
	SafeSearch     string `json:"safe_search,omitempty" jsonschema:"none, moderate (default), strict"`
}

// DetailsInput selects entities by id.
type DetailsInput struct {
	IDs         []string `json:"ids,omitempty" jsonschema:"Entity ids"`
	IDList      string   `json:"id_list,omitempty" jsonschema:"Entity ids as a comma separated string"`
	AccessToken string   `json:"access_token,omitempty" jsonschema:"OAuth access token, needed for private entities"`
}

type TrendingInput struct {
	Category  string `json:"category,omitempty" jsonschema:"Video category id, e.g. 10 for music, 20 for gaming"`
	Region    string `json:"region,omitempty" jsonschema:"ISO 3166-1 alpha-2 region code (default US)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"Page token from a previous result"`
}

type PlaylistVideosInput struct {
	PlaylistID  string `json:"playlist_id" jsonschema:"Playlist id"`
	PageToken   string `json:"page_token,omitempty" jsonschema:"Page token from a previous result"`
	AccessToken string `json:"access_token,omitempty" jsonschema:"OAuth access token, needed for private playlists"`
}

type CommentsInput struct {
	VideoID   string `json:"video_id" jsonschema:"Video id"`
	PageToken string `json:"page_token,omitempty" jsonschema:"Page token from a previous result"`
}

type FeedInput struct {
	AccessToken string `json:"access_token" jsonschema:"OAuth access token of the subscriber"`
	Cursor      string `json:"cursor,omitempty" jsonschema:"Cursor from the previous page; omit for the first page"`
}

// FilterInput carries already-fetched videos through the filters.
type FilterInput struct {
	Videos     []engine.VideoItem `json:"videos" jsonschema:"Videos as returned by other tools"`
	KeepShorts bool               `json:"keep_shorts,omitempty" jsonschema:"Skip the short-form filter"`
	KeepBroken bool               `json:"keep_broken,omitempty" jsonschema:"Skip the deleted/private/ghost filter"`
}

type QuotaInput struct{}

// --- Tool outputs ---

type VideosOutput struct {
	Items []engine.VideoItem `json:"items"`
}

type ChannelsOutput struct {
	Items []engine.ChannelItem `json:"items"`
}

type PlaylistsOutput struct {
	Items []engine.PlaylistItem `json:"items"`
}

type FilterOutput struct {
	Items   []engine.VideoItem `json:"items"`
	Removed int                `json:"removed"`
}
