// Package media defines the media item types that flow through the gallery
// pipeline, plus the raw source records they are built from.
package media

import (
	"path"
	"strings"
	"time"
)

// SourceType identifies the collection a media item came from.
type SourceType string

const (
	SourceChat       SourceType = "chat"
	SourceUnassigned SourceType = "unassigned"
	SourceProject    SourceType = "project"
)

// FileType is the broad media kind used to pick a renderer.
type FileType string

const (
	FileImage FileType = "image"
	FileVideo FileType = "video"
	FileAudio FileType = "audio"
)

// UnassignedLabel is the provenance label for attachments outside any chat.
const UnassignedLabel = "Unassigned"

// Item is a single media entry in the aggregated collection.
// Items are rebuilt on every aggregation pass and never mutated afterwards.
type Item struct {
	ID          string
	SourceType  SourceType
	URL         string
	StoragePath string // bucket path, used for AI/upload classification
	FileType    FileType
	CreatedAt   time.Time

	// Provenance
	ChatName    string
	ChatID      string
	ProjectID   string
	ProjectType string

	Name        string
	Description string
	Visible     bool // project visibility; always true for attachments
}

// Key returns the identity of the item across sources.
// IDs are only unique within a source collection.
func (it Item) Key() string {
	return string(it.SourceType) + ":" + it.ID
}

// Label returns the provenance label shown on the tile and matched by search.
func (it Item) Label() string {
	switch it.SourceType {
	case SourceUnassigned:
		return UnassignedLabel
	case SourceProject:
		if it.Name != "" {
			return it.Name
		}
		return "Project"
	default:
		return it.ChatName
	}
}

// IsVideo reports whether the item needs a playback slot.
func (it Item) IsVideo() bool {
	return it.FileType == FileVideo
}

// Attachment is a file attached to a chat, or unassigned when it has no chat.
type Attachment struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	StoragePath string    `json:"storage_path,omitempty"`
	FileType    FileType  `json:"file_type"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatGroup holds the attachments of a single chat.
type ChatGroup struct {
	ChatID      string       `json:"chat_id"`
	ChatName    string       `json:"chat_name"`
	Attachments []Attachment `json:"attachments"`
}

// VideoProject is an authored video; it renders as a single video item.
type VideoProject struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ProjectType  string    `json:"project_type,omitempty"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	StoragePath  string    `json:"storage_path,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sources are the three raw collections returned by the media repository.
type Sources struct {
	Chats      []ChatGroup    `json:"chats"`
	Unassigned []Attachment   `json:"unassigned"`
	Projects   []VideoProject `json:"projects"`
}

// Len returns the number of raw records across all sources.
func (s Sources) Len() int {
	n := len(s.Unassigned) + len(s.Projects)
	for _, c := range s.Chats {
		n += len(c.Attachments)
	}
	return n
}

// ephemeralSchemes are locally generated addresses that die with the session.
var ephemeralSchemes = []string{"blob:", "filesystem:"}

// IsEphemeralURL reports whether u is a local-only address that must never
// be rendered.
func IsEphemeralURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	for _, scheme := range ephemeralSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// ResolveFileType normalises a declared type ("video", "VIDEO",
// "video/mp4"), falling back to the URL extension and then to image.
func ResolveFileType(declared FileType, url string) FileType {
	if ft, ok := ParseFileType(string(declared)); ok {
		return ft
	}
	if ft, ok := ParseFileType(url); ok {
		return ft
	}
	return FileImage
}

// ParseFileType maps a MIME type or file name to a FileType.
// Unknown values return ("", false).
func ParseFileType(s string) (FileType, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch lower {
	case "image", "video", "audio":
		return FileType(lower), true
	}
	switch {
	case strings.HasPrefix(lower, "image/"):
		return FileImage, true
	case strings.HasPrefix(lower, "video/"):
		return FileVideo, true
	case strings.HasPrefix(lower, "audio/"):
		return FileAudio, true
	}

	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch path.Ext(lower) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".avif":
		return FileImage, true
	case ".mp4", ".webm", ".mov", ".m4v", ".mkv", ".ogv":
		return FileVideo, true
	case ".mp3", ".wav", ".ogg", ".m4a", ".flac", ".aac", ".opus":
		return FileAudio, true
	}
	return "", false
}
