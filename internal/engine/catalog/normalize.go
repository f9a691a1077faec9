package catalog

import (
	"time"

	"github.com/anatolykoptev/go-kit/strutil"
	"github.com/anatolykoptev/go_tube/internal/engine"
	youtube "google.golang.org/api/youtube/v3"
)

// maxDescriptionRunes caps descriptions kept in cached entities.
const maxDescriptionRunes = 500

const (
	watchURL    = "https://www.youtube.com/watch?v="
	channelURL  = "https://www.youtube.com/channel/"
	playlistURL = "https://www.youtube.com/playlist?list="
)

// The upstream omits whole sub-objects for deleted, private or partially
// requested resources. Every accessor below tolerates nil and falls back to
// the zero value instead of failing the batch.

func normalizeVideo(v *youtube.Video) engine.VideoItem {
	item := engine.VideoItem{ID: v.Id}
	if v.Id != "" {
		item.URL = watchURL + v.Id
	}
	if sn := v.Snippet; sn != nil {
		item.Title = sn.Title
		item.Description = strutil.TruncateWith(sn.Description, maxDescriptionRunes, "…")
		item.ChannelID = sn.ChannelId
		item.ChannelTitle = sn.ChannelTitle
		item.PublishedAt = parseTime(sn.PublishedAt)
		item.Thumbnail = bestThumbnail(sn.Thumbnails)
		item.LiveBroadcast = sn.LiveBroadcastContent
	}
	if cd := v.ContentDetails; cd != nil {
		item.Duration = cd.Duration
		item.DurationSeconds = int64(ParseDuration(cd.Duration) / time.Second)
	}
	if st := v.Statistics; st != nil {
		item.ViewCount = int64(st.ViewCount)
		item.LikeCount = int64(st.LikeCount)
		item.CommentCount = int64(st.CommentCount)
	}
	return item
}

func normalizeChannel(c *youtube.Channel) engine.ChannelItem {
	item := engine.ChannelItem{ID: c.Id}
	if c.Id != "" {
		item.URL = channelURL + c.Id
	}
	if sn := c.Snippet; sn != nil {
		item.Title = sn.Title
		item.Description = strutil.TruncateWith(sn.Description, maxDescriptionRunes, "…")
		item.CustomURL = sn.CustomUrl
		item.Thumbnail = bestThumbnail(sn.Thumbnails)
	}
	if st := c.Statistics; st != nil {
		if !st.HiddenSubscriberCount {
			item.SubscriberCount = int64(st.SubscriberCount)
		}
		item.VideoCount = int64(st.VideoCount)
	}
	if cd := c.ContentDetails; cd != nil && cd.RelatedPlaylists != nil {
		item.UploadsPlaylistID = cd.RelatedPlaylists.Uploads
	}
	return item
}

func normalizePlaylist(p *youtube.Playlist) engine.PlaylistItem {
	item := engine.PlaylistItem{ID: p.Id}
	if p.Id != "" {
		item.URL = playlistURL + p.Id
	}
	if sn := p.Snippet; sn != nil {
		item.Title = sn.Title
		item.Description = strutil.TruncateWith(sn.Description, maxDescriptionRunes, "…")
		item.ChannelID = sn.ChannelId
		item.ChannelTitle = sn.ChannelTitle
		item.Thumbnail = bestThumbnail(sn.Thumbnails)
		item.PublishedAt = parseTime(sn.PublishedAt)
	}
	if cd := p.ContentDetails; cd != nil {
		item.ItemCount = cd.ItemCount
	}
	return item
}

func normalizeComment(t *youtube.CommentThread) engine.CommentItem {
	item := engine.CommentItem{ID: t.Id}
	sn := t.Snippet
	if sn == nil {
		return item
	}
	item.ReplyCount = sn.TotalReplyCount
	if sn.TopLevelComment == nil || sn.TopLevelComment.Snippet == nil {
		return item
	}
	c := sn.TopLevelComment.Snippet
	item.Author = c.AuthorDisplayName
	item.AuthorAvatar = c.AuthorProfileImageUrl
	item.Text = c.TextDisplay
	item.LikeCount = c.LikeCount
	item.PublishedAt = parseTime(c.PublishedAt)
	return item
}

// bestThumbnail picks the largest commonly available rendition.
func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Standard, t.Default, t.Maxres} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
