package ui

import (
	"math"

	"github.com/abelbrown/gallery/internal/masonry"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/visibility"
)

// Terminal cells are measured in pixels for visibility so that CSS-style
// margins such as "50px" keep their meaning.
const (
	cellWidth  = 8
	cellHeight = 16
)

// tileLines is the height of a grid tile and the minimum masonry tile.
const tileLines = 3

// sentinelKey is the visibility target placed after the last tile.
const sentinelKey = "\x00sentinel"

// Mode selects how tiles are arranged.
type Mode int

const (
	ModeGrid Mode = iota
	ModeMasonry
)

func (m Mode) String() string {
	if m == ModeMasonry {
		return "masonry"
	}
	return "grid"
}

// tile is one item placed in content coordinates (columns and lines).
type tile struct {
	item  media.Item
	col   int
	line  int
	lines int
}

// layout is the placement of the rendered prefix.
type layout struct {
	cols     int
	colWidth int
	tiles    []tile         // in rendered order
	index    map[string]int // key -> position in tiles
	height   int            // content lines, sentinel excluded
}

func newLayout(cols, width int) layout {
	if cols < 1 {
		cols = 1
	}
	colWidth := width / cols
	if colWidth < 1 {
		colWidth = 1
	}
	return layout{cols: cols, colWidth: colWidth, index: make(map[string]int)}
}

func (l *layout) place(t tile) {
	l.index[t.item.Key()] = len(l.tiles)
	l.tiles = append(l.tiles, t)
	if end := t.line + t.lines; end > l.height {
		l.height = end
	}
}

// gridLayout fills rows left to right with fixed-height tiles.
func gridLayout(items []media.Item, width int, bps []masonry.Breakpoint) layout {
	l := newLayout(masonry.Columns(width, bps), width)
	for i, it := range items {
		l.place(tile{item: it, col: i % l.cols, line: (i / l.cols) * tileLines, lines: tileLines})
	}
	return l
}

// masonryLayout balances items over columns by estimated height. Tiles keep
// their rendered order within a column; the rendered order across columns
// is preserved in l.tiles for cursor navigation.
func masonryLayout(items []media.Item, width int, bps []masonry.Breakpoint, est masonry.Estimator) layout {
	l := newLayout(masonry.Columns(width, bps), width)
	lines := func(it media.Item) int {
		n := int(math.Ceil(est.Height(it.Description)))
		if n < tileLines {
			n = tileLines
		}
		return n
	}
	cols := masonry.Balance(items, l.cols, func(it media.Item) float64 { return float64(lines(it)) })

	placed := make(map[string]tile, len(items))
	for c, col := range cols {
		y := 0
		for _, it := range col {
			n := lines(it)
			placed[it.Key()] = tile{item: it, col: c, line: y, lines: n}
			y += n
		}
	}
	for _, it := range items {
		l.place(placed[it.Key()])
	}
	return l
}

// tileAt returns the tile for key.
func (l layout) tileAt(key string) (tile, bool) {
	i, ok := l.index[key]
	if !ok {
		return tile{}, false
	}
	return l.tiles[i], true
}

// bounds converts the placement to visibility rectangles. The sentinel is
// a zero-height line directly under the tallest column.
func (l layout) bounds(withSentinel bool) map[string]visibility.Rect {
	out := make(map[string]visibility.Rect, len(l.tiles)+1)
	for _, t := range l.tiles {
		out[t.item.Key()] = visibility.Rect{
			X: float64(t.col * l.colWidth * cellWidth),
			Y: float64(t.line * cellHeight),
			W: float64(l.colWidth * cellWidth),
			H: float64(t.lines * cellHeight),
		}
	}
	if withSentinel {
		out[sentinelKey] = visibility.Rect{
			Y: float64(l.height * cellHeight),
			W: float64(l.cols * l.colWidth * cellWidth),
		}
	}
	return out
}

// neighbor returns the tile index reached by moving from i. dx moves
// within rendered order; dy moves to the closest tile in the same column.
func (l layout) neighbor(i, dx, dy int) int {
	if len(l.tiles) == 0 {
		return 0
	}
	if i < 0 || i >= len(l.tiles) {
		i = 0
	}
	if dx != 0 {
		j := i + dx
		return clamp(j, 0, len(l.tiles)-1)
	}
	cur := l.tiles[i]
	best := -1
	for j, t := range l.tiles {
		if t.col != cur.col {
			continue
		}
		if dy > 0 && t.line > cur.line && (best < 0 || t.line < l.tiles[best].line) {
			best = j
		}
		if dy < 0 && t.line < cur.line && (best < 0 || t.line > l.tiles[best].line) {
			best = j
		}
	}
	if best < 0 {
		return i
	}
	return best
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
