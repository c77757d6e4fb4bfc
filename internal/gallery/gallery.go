// Package gallery chains aggregation, the filter/sort view and progressive
// disclosure. Every input change recomputes downstream stages synchronously,
// so callers never observe a view built from stale sources.
package gallery

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/gallery/internal/aggregate"
	"github.com/abelbrown/gallery/internal/catalog"
	"github.com/abelbrown/gallery/internal/disclose"
	"github.com/abelbrown/gallery/internal/media"
)

// Pipeline owns the derived collection state for one gallery screen.
type Pipeline struct {
	classifier catalog.Classifier
	disclosure *disclose.Controller

	sources  media.Sources
	items    []media.Item // aggregated
	stats    aggregate.Stats
	category catalog.Category
	query    string
	view     []media.Item // filtered + sorted
	counts   map[catalog.Category]int
	index    map[string]int // key -> position in view
}

// New creates an empty pipeline on the "all" category.
func New(classifier catalog.Classifier, cfg disclose.Config) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		disclosure: disclose.New(cfg),
		category:   catalog.CategoryAll,
	}
	p.recompute()
	return p
}

// SetSources replaces the raw inputs. Disclosure is kept so that a
// background reload does not yank the user back to the top.
func (p *Pipeline) SetSources(src media.Sources) {
	p.sources = src
	p.items, p.stats = aggregate.AggregateWithStats(src)
	p.recompute()
}

// SetCategory switches the active tab. A change resets disclosure.
func (p *Pipeline) SetCategory(c catalog.Category) bool {
	if c == p.category {
		return false
	}
	p.category = c
	p.disclosure.Reset()
	p.recompute()
	return true
}

// SetQuery replaces the search query. A change resets disclosure.
func (p *Pipeline) SetQuery(q string) bool {
	if q == p.query {
		return false
	}
	p.query = q
	p.disclosure.Reset()
	p.recompute()
	return true
}

func (p *Pipeline) recompute() {
	p.view = p.classifier.View(p.items, p.category, p.query)
	p.counts = p.classifier.Counts(p.items)
	p.index = make(map[string]int, len(p.view))
	for i, it := range p.view {
		p.index[it.Key()] = i
	}
}

// Category returns the active category.
func (p *Pipeline) Category() catalog.Category { return p.category }

// Query returns the active query.
func (p *Pipeline) Query() string { return p.query }

// Sources returns the last raw inputs.
func (p *Pipeline) Sources() media.Sources { return p.sources }

// Items returns the full aggregated collection.
func (p *Pipeline) Items() []media.Item { return p.items }

// Stats returns counters from the last aggregation.
func (p *Pipeline) Stats() aggregate.Stats { return p.stats }

// Counts returns per-category totals over the aggregated collection.
func (p *Pipeline) Counts() map[catalog.Category]int { return p.counts }

// View returns the full filtered, sorted projection.
func (p *Pipeline) View() []media.Item { return p.view }

// Total returns the projection length.
func (p *Pipeline) Total() int { return len(p.view) }

// Rendered returns the disclosed prefix of the projection.
func (p *Pipeline) Rendered() []media.Item {
	return p.view[:p.disclosure.Window(len(p.view))]
}

// HasMore reports whether the projection extends past the rendered prefix.
func (p *Pipeline) HasMore() bool { return p.disclosure.HasMore(len(p.view)) }

// Loading reports whether a disclosure step is pending.
func (p *Pipeline) Loading() bool { return p.disclosure.Loading() }

// RequestMore forwards to the disclosure controller.
func (p *Pipeline) RequestMore() tea.Cmd {
	return p.disclosure.RequestMore(len(p.view))
}

// Grow applies a settled disclosure step.
func (p *Pipeline) Grow(msg disclose.GrowMsg) bool {
	return p.disclosure.Grow(msg, len(p.view))
}

// Find returns the projected item with key.
func (p *Pipeline) Find(key string) (media.Item, bool) {
	i, ok := p.index[key]
	if !ok {
		return media.Item{}, false
	}
	return p.view[i], true
}

// Position returns key's index in the projection, or -1.
func (p *Pipeline) Position(key string) int {
	if i, ok := p.index[key]; ok {
		return i
	}
	return -1
}
