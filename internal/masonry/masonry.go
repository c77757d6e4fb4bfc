// Package masonry approximates equal-height columns without measuring
// layout: each item goes to the column with the smallest estimated height.
package masonry

import (
	"sort"
	"unicode/utf8"
)

// Estimator guesses an item's rendered height from its text length.
// The constants are tuning, not a contract.
type Estimator struct {
	Base    float64 // fixed chrome (thumbnail, label)
	PerRune float64 // added per rune of description
}

// DefaultEstimator is calibrated for terminal tiles: a thumbnail row plus
// label, then one wrapped line per ~40 runes.
var DefaultEstimator = Estimator{Base: 4, PerRune: 1.0 / 40}

// Height returns Base + PerRune*runes(text).
func (e Estimator) Height(text string) float64 {
	return e.Base + e.PerRune*float64(utf8.RuneCountInString(text))
}

// Breakpoint maps a minimum width to a column count.
type Breakpoint struct {
	MinWidth int
	Columns  int
}

// DefaultBreakpoints are terminal widths in cells.
var DefaultBreakpoints = []Breakpoint{
	{MinWidth: 160, Columns: 4},
	{MinWidth: 120, Columns: 3},
	{MinWidth: 80, Columns: 2},
}

// Columns returns the column count for width: the widest breakpoint whose
// MinWidth fits, or 1.
func Columns(width int, bps []Breakpoint) int {
	sorted := make([]Breakpoint, len(bps))
	copy(sorted, bps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinWidth > sorted[j].MinWidth })
	for _, bp := range sorted {
		if width >= bp.MinWidth && bp.Columns > 0 {
			return bp.Columns
		}
	}
	return 1
}

// Balance distributes items over k columns, preserving item order within
// each column. Ties go to the leftmost column. O(n·k).
func Balance[T any](items []T, k int, height func(T) float64) [][]T {
	if k < 1 {
		k = 1
	}
	cols := make([][]T, k)
	totals := make([]float64, k)
	for _, item := range items {
		shortest := 0
		for c := 1; c < k; c++ {
			if totals[c] < totals[shortest] {
				shortest = c
			}
		}
		cols[shortest] = append(cols[shortest], item)
		totals[shortest] += height(item)
	}
	return cols
}
