// Package catalog derives the filtered, chronologically sorted projection of
// the aggregated collection. All functions are pure: []Item in, []Item out.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/abelbrown/gallery/internal/media"
)

// Category selects a slice of the collection.
type Category string

const (
	CategoryAll      Category = "all"
	CategoryAI       Category = "ai"
	CategoryUploads  Category = "uploads"
	CategoryProjects Category = "projects"
)

// Categories lists the selectable categories in tab order.
var Categories = []Category{CategoryAll, CategoryAI, CategoryUploads, CategoryProjects}

// ParseCategory accepts a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" {
		return CategoryAll, nil
	}
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Title returns the tab label.
func (c Category) Title() string {
	switch c {
	case CategoryAI:
		return "AI"
	case CategoryUploads:
		return "Uploads"
	case CategoryProjects:
		return "Projects"
	default:
		return "All"
	}
}

// DefaultAIMarkers are storage path fragments written by the image and video
// generators.
var DefaultAIMarkers = []string{
	"generated-images/",
	"generated-videos/",
	"ai-generated/",
	"/generations/",
}

// DefaultUploadMarkers are storage path fragments for user-submitted files.
var DefaultUploadMarkers = []string{
	"uploads/",
	"user-uploads/",
}

// Classifier decides AI/upload membership from storage paths.
type Classifier struct {
	AIMarkers     []string
	UploadMarkers []string
}

// DefaultClassifier returns a Classifier using the default markers.
func DefaultClassifier() Classifier {
	return Classifier{AIMarkers: DefaultAIMarkers, UploadMarkers: DefaultUploadMarkers}
}

// IsAIGenerated reports whether the item came from a generator.
// Project items are never AI-generated, whatever their path says.
func (c Classifier) IsAIGenerated(item media.Item) bool {
	if item.SourceType == media.SourceProject {
		return false
	}
	return containsAny(item.StoragePath, c.AIMarkers) || containsAny(item.URL, c.AIMarkers)
}

// IsUpload reports whether the item was submitted by the user.
func (c Classifier) IsUpload(item media.Item) bool {
	if item.SourceType == media.SourceUnassigned {
		return true
	}
	if item.SourceType == media.SourceProject {
		return false
	}
	return containsAny(item.StoragePath, c.UploadMarkers)
}

// Matches reports whether item belongs to category.
func (c Classifier) Matches(item media.Item, category Category) bool {
	switch category {
	case CategoryAI:
		return c.IsAIGenerated(item)
	case CategoryUploads:
		return c.IsUpload(item)
	case CategoryProjects:
		return item.SourceType == media.SourceProject
	default:
		return true
	}
}

// View filters items by category or query and sorts newest first.
//
// The projects category always narrows to project items first. Otherwise a
// non-empty query replaces the category predicate entirely: query and
// category are not composed. The sort is stable so items with equal
// CreatedAt keep their aggregation order.
func (c Classifier) View(items []media.Item, category Category, query string) []media.Item {
	q := strings.ToLower(strings.TrimSpace(query))

	out := make([]media.Item, 0, len(items))
	for _, item := range items {
		if category == CategoryProjects && item.SourceType != media.SourceProject {
			continue
		}
		if q != "" {
			if !strings.Contains(strings.ToLower(item.Label()), q) {
				continue
			}
		} else if !c.Matches(item, category) {
			continue
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Counts returns per-category totals for the tab bar.
func (c Classifier) Counts(items []media.Item) map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, item := range items {
		for _, cat := range Categories {
			if c.Matches(item, cat) {
				counts[cat]++
			}
		}
	}
	return counts
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
