// Package ui provides the Bubble Tea TUI for the gallery.
package ui

import "github.com/abelbrown/gallery/internal/media"

// SourcesLoaded is sent when the repository has been listed.
type SourcesLoaded struct {
	Sources media.Sources
	Err     error
}

// Action names a repository mutation triggered from the UI.
type Action string

const (
	ActionDelete Action = "delete"
	ActionRename Action = "rename"
	ActionToggle Action = "toggle"
)

// ActionDone is sent when a repository action finishes. The collection is
// never patched locally: success triggers a reload, failure only reports.
type ActionDone struct {
	Action Action
	Key    string
	Err    error
}
