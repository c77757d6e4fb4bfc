package ui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/abelbrown/gallery/internal/masonry"
	"github.com/abelbrown/gallery/internal/media"
)

func items(descs ...string) []media.Item {
	out := make([]media.Item, len(descs))
	for i, d := range descs {
		out[i] = media.Item{
			ID:          fmt.Sprintf("i%d", i),
			SourceType:  media.SourceUnassigned,
			FileType:    media.FileImage,
			Description: d,
		}
	}
	return out
}

func TestGridLayoutPlacesRowsLeftToRight(t *testing.T) {
	l := gridLayout(items("", "", "", "", "", "", ""), 120, masonry.DefaultBreakpoints)
	if l.cols != 3 || l.colWidth != 40 {
		t.Fatalf("cols=%d colWidth=%d, want 3 and 40", l.cols, l.colWidth)
	}
	tl := l.tiles[4]
	if tl.col != 1 || tl.line != 3 {
		t.Errorf("tile 4 at col %d line %d, want col 1 line 3", tl.col, tl.line)
	}
	if l.height != 9 {
		t.Errorf("height = %d, want 9", l.height)
	}
}

func TestBoundsSentinelSitsUnderContent(t *testing.T) {
	l := gridLayout(items("", "", "", "", "", "", ""), 120, masonry.DefaultBreakpoints)

	b := l.bounds(true)
	s, ok := b[sentinelKey]
	if !ok {
		t.Fatal("sentinel missing from bounds")
	}
	if s.Y != 9*cellHeight || s.H != 0 || s.W != 3*40*cellWidth {
		t.Errorf("sentinel = %+v", s)
	}
	r := b["unassigned:i4"]
	if r.X != 40*cellWidth || r.Y != 3*cellHeight || r.H != tileLines*cellHeight {
		t.Errorf("tile 4 rect = %+v", r)
	}

	if _, ok := l.bounds(false)[sentinelKey]; ok {
		t.Error("sentinel should be omitted when nothing is left to disclose")
	}
}

func TestMasonryLayoutBalancesColumns(t *testing.T) {
	long := strings.Repeat("x", 200) // 4 + 200/40 = 9 lines
	l := masonryLayout(items(long, "", "", ""), 80, masonry.DefaultBreakpoints, masonry.DefaultEstimator)

	if l.cols != 2 {
		t.Fatalf("cols = %d, want 2", l.cols)
	}
	if l.tiles[0].col != 0 || l.tiles[0].lines != 9 {
		t.Errorf("long tile = %+v", l.tiles[0])
	}
	for i, wantLine := range []int{0, 4, 8} {
		tl := l.tiles[i+1]
		if tl.col != 1 || tl.line != wantLine {
			t.Errorf("short tile %d at col %d line %d, want col 1 line %d", i, tl.col, tl.line, wantLine)
		}
	}
	if l.height != 12 {
		t.Errorf("height = %d, want 12", l.height)
	}
}

func TestMasonryMinimumTileHeight(t *testing.T) {
	l := masonryLayout(items(""), 40, nil, masonry.Estimator{Base: 1})
	if l.tiles[0].lines != tileLines {
		t.Errorf("lines = %d, want %d", l.tiles[0].lines, tileLines)
	}
}

func TestNeighbor(t *testing.T) {
	long := strings.Repeat("x", 200)
	l := masonryLayout(items(long, "", "", ""), 80, masonry.DefaultBreakpoints, masonry.DefaultEstimator)

	tests := []struct {
		from, dx, dy, want int
	}{
		{1, 0, 1, 2},  // down the right column
		{2, 0, -1, 1}, // back up
		{1, -1, 0, 0}, // left in rendered order
		{0, 0, 1, 0},  // nothing below the long tile
		{3, 1, 0, 3},  // clamped at the end
		{0, -1, 0, 0}, // clamped at the start
	}
	for _, tt := range tests {
		if got := l.neighbor(tt.from, tt.dx, tt.dy); got != tt.want {
			t.Errorf("neighbor(%d, %d, %d) = %d, want %d", tt.from, tt.dx, tt.dy, got, tt.want)
		}
	}

	if got := (layout{}).neighbor(5, 1, 0); got != 0 {
		t.Errorf("empty layout neighbor = %d, want 0", got)
	}
}

func TestTileAt(t *testing.T) {
	l := gridLayout(items("", ""), 40, nil)
	if _, ok := l.tileAt("unassigned:i1"); !ok {
		t.Error("tileAt should find a placed item")
	}
	if _, ok := l.tileAt("unassigned:missing"); ok {
		t.Error("tileAt should miss an unknown key")
	}
}

func TestFit(t *testing.T) {
	if got := fit("hello", 3); got != "he…" {
		t.Errorf("fit truncate = %q", got)
	}
	if got := fit("hi", 4); got != "hi  " {
		t.Errorf("fit pad = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("aa bb cc", 5)
	if len(got) != 2 || got[0] != "aa bb" || got[1] != "cc" {
		t.Errorf("wrapText = %q", got)
	}
	if got := wrapText("   ", 5); len(got) != 0 {
		t.Errorf("wrapText(blank) = %q, want none", got)
	}
}
