package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/abelbrown/gallery/internal/media"
)

// ReadManifest decodes a JSON manifest in the media.Sources shape:
//
//	{"chats": [...], "unassigned": [...], "projects": [...]}
//
// Unknown fields are rejected so that typos do not silently drop data.
func ReadManifest(r io.Reader) (media.Sources, error) {
	var src media.Sources
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&src); err != nil {
		return media.Sources{}, fmt.Errorf("decode manifest: %w", err)
	}
	return src, nil
}

// ReadManifestFile opens path and calls ReadManifest.
func ReadManifestFile(path string) (media.Sources, error) {
	f, err := os.Open(path)
	if err != nil {
		return media.Sources{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f)
}
