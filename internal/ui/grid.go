package ui

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/gallery/internal/catalog"
	"github.com/abelbrown/gallery/internal/loadstate"
	"github.com/abelbrown/gallery/internal/media"
)

// tileState is what a tile needs to know about its item beyond the item.
type tileState struct {
	rec      loadstate.Record
	tracked  bool
	playing  bool
	selected bool
}

// frame carries per-render inputs shared by every tile.
type frame struct {
	now     time.Time
	spinner string
	hasMore bool
	loading bool
	state   func(key string) tileState
}

// renderContent draws lines [scroll, scroll+height) of the layout.
func renderContent(l layout, scroll, height int, f frame) string {
	if height < 1 {
		return ""
	}
	blank := strings.Repeat(" ", l.colWidth)
	canvas := make([][]string, height)
	for i := range canvas {
		row := make([]string, l.cols)
		for c := range row {
			row[c] = blank
		}
		canvas[i] = row
	}

	for _, t := range l.tiles {
		if t.line+t.lines <= scroll || t.line >= scroll+height {
			continue
		}
		lines := renderTile(t, l.colWidth, f)
		for k, s := range lines {
			y := t.line + k - scroll
			if y >= 0 && y < height {
				canvas[y][t.col] = s
			}
		}
	}

	out := make([]string, height)
	for i, row := range canvas {
		out[i] = strings.Join(row, "")
	}
	if f.hasMore {
		if y := l.height - scroll; y >= 0 && y < height {
			out[y] = renderSentinel(l.cols*l.colWidth, f.loading)
		}
	}
	return strings.Join(out, "\n")
}

// renderTile returns exactly t.lines lines, each colWidth cells wide.
func renderTile(t tile, colWidth int, f frame) []string {
	w := colWidth - 1 // one-cell gutter
	if w < 1 {
		w = 1
	}
	st := f.state(t.item.Key())

	text := make([]string, 0, t.lines)
	text = append(text, TileLabel.Render(fit(fileIcon(t.item.FileType)+" "+t.item.Label(), w)))
	text = append(text, TileMeta.Render(fit(tileMeta(t.item, f.now, w), w)))
	text = append(text, renderState(st, t.item, f.spinner, w))
	if t.lines > tileLines {
		for _, s := range wrapText(t.item.Description, w) {
			if len(text) == t.lines {
				break
			}
			text = append(text, TileDescription.Render(fit(s, w)))
		}
	}
	for len(text) < t.lines {
		text = append(text, strings.Repeat(" ", w))
	}

	for i, s := range text {
		if st.selected {
			s = TileSelected.Render(s)
		}
		text[i] = s + " "
	}
	return text
}

func fileIcon(ft media.FileType) string {
	switch ft {
	case media.FileVideo:
		return "▶"
	case media.FileAudio:
		return "♪"
	default:
		return "▣"
	}
}

// tileMeta is "<name> · <age>", with the name falling back to the file name.
func tileMeta(it media.Item, now time.Time, w int) string {
	name := it.Name
	if name == "" {
		name = path.Base(it.URL)
	}
	if it.SourceType == media.SourceProject && !it.Visible {
		name = "(private) " + name
	}
	age := humanize.RelTime(it.CreatedAt, now, "ago", "from now")
	if it.CreatedAt.IsZero() {
		age = ""
	}
	if age == "" {
		return name
	}
	room := w - runewidth.StringWidth(age) - 3
	if room < 1 {
		return age
	}
	return runewidth.Truncate(name, room, "…") + " · " + age
}

func renderState(st tileState, it media.Item, spin string, w int) string {
	if !st.tracked {
		return strings.Repeat(" ", w)
	}
	rec := st.rec
	var s string
	var style lipgloss.Style
	switch rec.State {
	case loadstate.Unrequested:
		s, style = "· waiting", StatePending
	case loadstate.Requested:
		s, style = "◌ loading", StateLoading
		if rec.Attempt > 0 {
			s = fmt.Sprintf("◌ retry %d", rec.Attempt)
		}
	case loadstate.Loaded:
		switch {
		case rec.Degraded:
			s, style = "~ unconfirmed", StateDegraded
		case st.playing:
			s, style = spin+" playing", StatePlaying
		case it.IsVideo():
			s, style = "❚❚ paused", StateLoaded
		default:
			s, style = "✓ ready", StateLoaded
		}
	case loadstate.Failed:
		s, style = "✗ unavailable", StateFailed
	}
	return style.Render(fit(s, w))
}

func renderSentinel(width int, loading bool) string {
	s := "  ⋯ more below"
	if loading {
		s = "  ⋯ loading more"
	}
	return SentinelStyle.Render(fit(s, width))
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

// wrapText breaks s into lines of at most w cells on word boundaries.
func wrapText(s string, w int) []string {
	var lines []string
	var cur strings.Builder
	curW := 0
	for _, word := range strings.Fields(s) {
		ww := runewidth.StringWidth(word)
		if curW > 0 && curW+1+ww > w {
			lines = append(lines, cur.String())
			cur.Reset()
			curW = 0
		}
		if curW > 0 {
			cur.WriteByte(' ')
			curW++
		}
		cur.WriteString(word)
		curW += ww
	}
	if curW > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// renderTabs draws the category bar with per-category counts.
func renderTabs(active catalog.Category, counts map[catalog.Category]int, width int) string {
	var parts []string
	for i, c := range catalog.Categories {
		label := fmt.Sprintf("%d %s %d", i+1, c.Title(), counts[c])
		if c == active {
			parts = append(parts, TabActive.Render(label))
		} else {
			parts = append(parts, TabInactive.Render(label))
		}
	}
	bar := strings.Join(parts, " ")
	if pad := width - lipgloss.Width(bar); pad > 0 {
		bar += strings.Repeat(" ", pad)
	}
	return bar
}

// statusInfo is the left side of the status bar.
type statusInfo struct {
	shown, total int
	loadingMore  bool
	pending      int
	playing      int
	capacity     int
	mode         Mode
	message      string
}

// renderStatusBar renders the bottom status bar with counts and key hints.
func renderStatusBar(info statusInfo, width int) string {
	var left string
	switch {
	case info.message != "":
		left = " " + info.message + " "
	default:
		left = fmt.Sprintf(" %d/%d ", info.shown, info.total)
		if info.loadingMore {
			left += "loading more… "
		}
		if info.pending > 0 {
			left += fmt.Sprintf("◌%d ", info.pending)
		}
		left += fmt.Sprintf("▶ %d/%d ", info.playing, info.capacity)
	}

	keys := []string{
		StatusBarKey.Render("hjkl") + StatusBarText.Render(":nav"),
		StatusBarKey.Render("1-4") + StatusBarText.Render(":tab"),
		StatusBarKey.Render("/") + StatusBarText.Render(":search"),
		StatusBarKey.Render("m") + StatusBarText.Render(":"+otherMode(info.mode).String()),
		StatusBarKey.Render("x") + StatusBarText.Render(":delete"),
		StatusBarKey.Render("R") + StatusBarText.Render(":rename"),
		StatusBarKey.Render("v") + StatusBarText.Render(":visibility"),
		StatusBarKey.Render("D") + StatusBarText.Render(":debug"),
		StatusBarKey.Render("q") + StatusBarText.Render(":quit"),
	}
	keyHints := strings.Join(keys, " ")
	// Drop trailing hints rather than wrapping onto a second line.
	for len(keys) > 0 && lipgloss.Width(left)+lipgloss.Width(keyHints)+2 > width {
		keys = keys[:len(keys)-1]
		keyHints = strings.Join(keys, " ")
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(keyHints) - 2
	if padding < 0 {
		padding = 0
	}
	return StatusBar.Width(width).Render(left + strings.Repeat(" ", padding) + keyHints)
}

func otherMode(m Mode) Mode {
	if m == ModeGrid {
		return ModeMasonry
	}
	return ModeGrid
}

// renderInputBar draws the search or rename prompt.
func renderInputBar(prompt, input string, count string, width int) string {
	content := InputBarPrompt.Render(prompt) + input
	if count != "" {
		content += InputBarCount.Render(" " + count)
	}
	if pad := width - lipgloss.Width(content) - 2; pad > 0 {
		content += strings.Repeat(" ", pad)
	}
	return InputBar.Width(width).Render(content)
}
