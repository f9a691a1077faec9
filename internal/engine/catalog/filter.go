package catalog

import (
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// placeholderTitles are what the upstream returns in place of a title for
// videos that no longer exist or are not visible.
var placeholderTitles = map[string]bool{
	"deleted video": true,
	"private video": true,
}

// IsBroken reports whether v is a dead or ghost entry not worth showing.
func IsBroken(v engine.VideoItem) bool {
	if strings.TrimSpace(v.ID) == "" {
		return true
	}
	title := strings.TrimSpace(v.Title)
	if title == "" || placeholderTitles[strings.ToLower(title)] {
		return true
	}
	// Ghost: the entity exists but carries nothing.
	return v.Thumbnail == "" && v.DurationSeconds == 0 && v.ViewCount == 0
}

// FilterBroken drops broken entries, preserving order. It runs before the
// short classifier so probes are never spent on dead ids.
func FilterBroken(videos []engine.VideoItem) []engine.VideoItem {
	out := make([]engine.VideoItem, 0, len(videos))
	for _, v := range videos {
		if IsBroken(v) {
			continue
		}
		out = append(out, v)
	}
	if n := len(videos) - len(out); n > 0 {
		engine.AddBrokenFiltered(n)
	}
	return out
}
