package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorError     = lipgloss.Color("196") // Red
)

// TabActive style for the selected category tab.
var TabActive = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// TabInactive style for the other category tabs.
var TabInactive = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// TileLabel style for the provenance line of a tile.
var TileLabel = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Bold(true)

// TileMeta style for the name/age line of a tile.
var TileMeta = lipgloss.NewStyle().
	Foreground(colorSecondary)

// TileDescription style for masonry description lines.
var TileDescription = lipgloss.NewStyle().
	Foreground(colorMuted)

// TileSelected style for the focused tile.
var TileSelected = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary)

// Load state indicators.
var (
	StatePending  = lipgloss.NewStyle().Foreground(colorMuted)
	StateLoading  = lipgloss.NewStyle().Foreground(colorHighlight)
	StateLoaded   = lipgloss.NewStyle().Foreground(colorSuccess)
	StateDegraded = lipgloss.NewStyle().Foreground(colorWarning)
	StateFailed   = lipgloss.NewStyle().Foreground(colorError)
	StatePlaying  = lipgloss.NewStyle().Foreground(colorHighlight).Bold(true)
)

// SentinelStyle for the "more below" row after the last rendered tile.
var SentinelStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Italic(true)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// InputBar style for the search and rename bars.
var InputBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("240")).
	Padding(0, 1)

// InputBarPrompt style for the bar prompt.
var InputBarPrompt = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// InputBarCount style for the match count.
var InputBarCount = lipgloss.NewStyle().
	Foreground(colorSecondary)

// DebugPanel style for the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle for section headers inside the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)
