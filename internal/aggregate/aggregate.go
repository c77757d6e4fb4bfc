// Package aggregate merges the three raw media collections into one flat,
// deduplicated collection. Pure functions only: no I/O, no shared state.
package aggregate

import (
	"strings"

	"github.com/abelbrown/gallery/internal/media"
)

// Stats describes what a pass dropped. Used by the debug overlay.
type Stats struct {
	Input      int // raw records across all sources
	Output     int
	NoURL      int
	Ephemeral  int
	Duplicates int
}

// Aggregate merges src into a single collection.
//
// Merge order is unassigned, then chat, then project. That order is the
// dedup tie-break: when two items share a URL the earliest one wins.
// Items without a URL or with an ephemeral address are dropped.
func Aggregate(src media.Sources) []media.Item {
	items, _ := AggregateWithStats(src)
	return items
}

// AggregateWithStats is Aggregate plus counters for each drop reason.
func AggregateWithStats(src media.Sources) ([]media.Item, Stats) {
	merged := make([]media.Item, 0, src.Len())
	merged = append(merged, unassignedItems(src.Unassigned)...)
	merged = append(merged, chatItems(src.Chats)...)
	merged = append(merged, projectItems(src.Projects)...)

	stats := Stats{Input: len(merged)}
	seen := make(map[string]bool, len(merged))
	out := make([]media.Item, 0, len(merged))

	for _, item := range merged {
		url := strings.TrimSpace(item.URL)
		if url == "" {
			stats.NoURL++
			continue
		}
		if media.IsEphemeralURL(url) {
			stats.Ephemeral++
			continue
		}
		if seen[url] {
			stats.Duplicates++
			continue
		}
		seen[url] = true
		item.URL = url
		out = append(out, item)
	}

	stats.Output = len(out)
	return out, stats
}

func unassignedItems(atts []media.Attachment) []media.Item {
	items := make([]media.Item, 0, len(atts))
	for _, a := range atts {
		item := fromAttachment(a, media.SourceUnassigned)
		item.ChatName = media.UnassignedLabel
		items = append(items, item)
	}
	return items
}

func chatItems(chats []media.ChatGroup) []media.Item {
	var items []media.Item
	for _, chat := range chats {
		for _, a := range chat.Attachments {
			item := fromAttachment(a, media.SourceChat)
			item.ChatName = chat.ChatName
			item.ChatID = chat.ChatID
			items = append(items, item)
		}
	}
	return items
}

func projectItems(projects []media.VideoProject) []media.Item {
	items := make([]media.Item, 0, len(projects))
	for _, p := range projects {
		items = append(items, media.Item{
			ID:          p.ID,
			SourceType:  media.SourceProject,
			URL:         p.VideoURL,
			StoragePath: p.StoragePath,
			FileType:    media.FileVideo,
			CreatedAt:   p.CreatedAt,
			ProjectID:   p.ID,
			ProjectType: p.ProjectType,
			Name:        p.Name,
			Description: p.Description,
			Visible:     p.IsPublic,
		})
	}
	return items
}

func fromAttachment(a media.Attachment, st media.SourceType) media.Item {
	// Older rows carry no type or a raw MIME value.
	ft := media.ResolveFileType(a.FileType, a.URL)
	return media.Item{
		ID:          a.ID,
		SourceType:  st,
		URL:         a.URL,
		StoragePath: a.StoragePath,
		FileType:    ft,
		CreatedAt:   a.CreatedAt,
		Name:        a.Name,
		Visible:     true,
	}
}
