package aggregate

import (
	"testing"
	"time"

	"github.com/abelbrown/gallery/internal/media"
)

func sampleSources() media.Sources {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return media.Sources{
		Chats: []media.ChatGroup{
			{
				ChatID:   "chat-1",
				ChatName: "Storyboard",
				Attachments: []media.Attachment{
					{ID: "a1", URL: "https://cdn.example.com/shared.png", FileType: media.FileImage, CreatedAt: now},
					{ID: "a2", URL: "https://cdn.example.com/chat-only.mp4", FileType: media.FileVideo, CreatedAt: now},
					{ID: "a3", URL: "blob:https://app.example.com/1234", FileType: media.FileImage, CreatedAt: now},
				},
			},
		},
		Unassigned: []media.Attachment{
			{ID: "u1", URL: "https://cdn.example.com/shared.png", FileType: media.FileImage, CreatedAt: now},
			{ID: "u2", URL: "", FileType: media.FileImage, CreatedAt: now},
		},
		Projects: []media.VideoProject{
			{ID: "p1", Name: "Teaser", VideoURL: "https://cdn.example.com/chat-only.mp4", CreatedAt: now},
			{ID: "p2", Name: "Final", VideoURL: "https://cdn.example.com/final.mp4", CreatedAt: now, IsPublic: true},
		},
	}
}

func TestAggregateDedupKeepsEarliestSource(t *testing.T) {
	items := Aggregate(sampleSources())

	byURL := make(map[string]media.Item)
	for _, item := range items {
		if prev, ok := byURL[item.URL]; ok {
			t.Fatalf("duplicate url %q from %s and %s", item.URL, prev.Key(), item.Key())
		}
		byURL[item.URL] = item
	}

	shared := byURL["https://cdn.example.com/shared.png"]
	if shared.SourceType != media.SourceUnassigned || shared.ID != "u1" {
		t.Errorf("shared.png should come from unassigned u1, got %s", shared.Key())
	}

	chatOnly := byURL["https://cdn.example.com/chat-only.mp4"]
	if chatOnly.SourceType != media.SourceChat || chatOnly.ID != "a2" {
		t.Errorf("chat-only.mp4 should come from chat a2 (chat beats project), got %s", chatOnly.Key())
	}
}

func TestAggregateMergeOrder(t *testing.T) {
	items := Aggregate(sampleSources())

	want := []string{"unassigned:u1", "chat:a2", "project:p2"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, key := range want {
		if items[i].Key() != key {
			t.Errorf("items[%d] = %s, want %s", i, items[i].Key(), key)
		}
	}
}

func TestAggregateExcludesEphemeralFromEverySource(t *testing.T) {
	src := media.Sources{
		Chats: []media.ChatGroup{{ChatID: "c", Attachments: []media.Attachment{
			{ID: "c1", URL: "blob:https://x/1"},
		}}},
		Unassigned: []media.Attachment{{ID: "u1", URL: "filesystem:https://x/tmp/2"}},
		Projects:   []media.VideoProject{{ID: "p1", VideoURL: "blob:https://x/3"}},
	}

	items, stats := AggregateWithStats(src)
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
	if stats.Ephemeral != 3 {
		t.Errorf("expected 3 ephemeral drops, got %d", stats.Ephemeral)
	}
}

func TestAggregateStats(t *testing.T) {
	_, stats := AggregateWithStats(sampleSources())

	if stats.Input != 7 {
		t.Errorf("Input = %d, want 7", stats.Input)
	}
	if stats.Output != 3 {
		t.Errorf("Output = %d, want 3", stats.Output)
	}
	if stats.NoURL != 1 {
		t.Errorf("NoURL = %d, want 1", stats.NoURL)
	}
	if stats.Ephemeral != 1 {
		t.Errorf("Ephemeral = %d, want 1", stats.Ephemeral)
	}
	if stats.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2", stats.Duplicates)
	}
}

func TestAggregateProvenance(t *testing.T) {
	items := Aggregate(sampleSources())

	for _, item := range items {
		switch item.SourceType {
		case media.SourceUnassigned:
			if item.Label() != media.UnassignedLabel {
				t.Errorf("unassigned label = %q", item.Label())
			}
		case media.SourceChat:
			if item.ChatName != "Storyboard" || item.ChatID != "chat-1" {
				t.Errorf("chat provenance missing: %+v", item)
			}
		case media.SourceProject:
			if item.FileType != media.FileVideo {
				t.Errorf("project items must be video, got %q", item.FileType)
			}
			if item.ProjectID != item.ID {
				t.Errorf("ProjectID = %q, want %q", item.ProjectID, item.ID)
			}
			if !item.Visible {
				t.Error("p2 is public and should be visible")
			}
		}
	}
}

func TestAggregateInfersMissingFileType(t *testing.T) {
	src := media.Sources{Unassigned: []media.Attachment{
		{ID: "u1", URL: "https://cdn.example.com/clip.webm"},
		{ID: "u2", URL: "https://cdn.example.com/unknown"},
	}}

	items := Aggregate(src)
	if items[0].FileType != media.FileVideo {
		t.Errorf("clip.webm FileType = %q, want video", items[0].FileType)
	}
	if items[1].FileType != media.FileImage {
		t.Errorf("unknown extension should default to image, got %q", items[1].FileType)
	}
}

func TestAggregateNormalisesRawFileType(t *testing.T) {
	src := media.Sources{Unassigned: []media.Attachment{
		{ID: "u1", URL: "https://cdn.example.com/a", FileType: "video/mp4"},
		{ID: "u2", URL: "https://cdn.example.com/b", FileType: "VIDEO"},
		{ID: "u3", URL: "https://cdn.example.com/c.mov", FileType: "bogus"},
	}}

	for _, it := range Aggregate(src) {
		if !it.IsVideo() {
			t.Errorf("%s FileType = %q, want video", it.ID, it.FileType)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	items := Aggregate(media.Sources{})
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}
