package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/gallery/internal/catalog"
	"github.com/abelbrown/gallery/internal/disclose"
	"github.com/abelbrown/gallery/internal/gallery"
	"github.com/abelbrown/gallery/internal/loadstate"
	"github.com/abelbrown/gallery/internal/masonry"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/otel"
	"github.com/abelbrown/gallery/internal/visibility"
)

// AppConfig holds everything the App needs. Repository access arrives as
// command constructors so the App never touches the store directly.
type AppConfig struct {
	Classifier catalog.Classifier
	Disclosure disclose.Config
	Loading    loadstate.Config

	// Load starts a media fetch. Nil treats every fetch as decoded.
	Load loadstate.LoadFunc

	Reload           func() tea.Cmd
	Delete           func(item media.Item) tea.Cmd
	Rename           func(item media.Item, name string) tea.Cmd
	ToggleVisibility func(item media.Item) tea.Cmd

	PlaybackCapacity int
	Visibility       visibility.Options
	Estimator        masonry.Estimator
	Breakpoints      []masonry.Breakpoint

	Events *otel.Logger     // optional
	Ring   *otel.RingBuffer // optional, feeds the debug overlay
	Now    func() time.Time // optional, for tests
}

type inputMode int

const (
	inputNone inputMode = iota
	inputSearch
	inputRename
)

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold *store.Store. It receives sources via messages.
type App struct {
	cfg      AppConfig
	pipeline *gallery.Pipeline
	tracker  *loadstate.Tracker
	scene    *scene
	layout   layout

	spin   spinner.Model
	search textinput.Model
	rename textinput.Model
	input  inputMode

	mode          Mode
	cursor        int
	cursorKey     string
	scroll        int
	confirmDelete string

	err       error
	status    string
	width     int
	height    int
	ready     bool
	loading   bool
	showDebug bool
}

// NewApp creates an App from cfg, filling unset fields with defaults.
func NewApp(cfg AppConfig) App {
	if cfg.Classifier.AIMarkers == nil && cfg.Classifier.UploadMarkers == nil {
		cfg.Classifier = catalog.DefaultClassifier()
	}
	if cfg.Visibility == (visibility.Options{}) {
		cfg.Visibility = visibility.DefaultOptions()
	}
	if cfg.Estimator == (masonry.Estimator{}) {
		cfg.Estimator = masonry.DefaultEstimator
	}
	if cfg.Breakpoints == nil {
		cfg.Breakpoints = masonry.DefaultBreakpoints
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	load := cfg.Load
	if load == nil {
		load = func(tk loadstate.Ticket, _ media.Item) tea.Cmd {
			return func() tea.Msg { return loadstate.DecodedMsg{Ticket: tk} }
		}
	}

	search := textinput.New()
	search.Prompt = ""
	search.Placeholder = "search by chat or project name"
	search.CharLimit = 120

	rename := textinput.New()
	rename.Prompt = ""
	rename.CharLimit = 200

	a := App{
		cfg:      cfg,
		pipeline: gallery.New(cfg.Classifier, cfg.Disclosure),
		tracker:  loadstate.NewTracker(cfg.Loading, load),
		scene:    newScene(cfg.Visibility, cfg.PlaybackCapacity, cfg.Events),
		spin:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(StatePlaying)),
		search:   search,
		rename:   rename,
		loading:  cfg.Reload != nil,
	}
	a.tracker.Observe = a.observeTransition
	return a
}

// Init requests the first load and starts the playback spinner.
func (a App) Init() tea.Cmd {
	var cmds []tea.Cmd
	if a.cfg.Reload != nil {
		cmds = append(cmds, a.cfg.Reload())
	}
	cmds = append(cmds, a.spin.Tick)
	return tea.Batch(cmds...)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() && a.cfg.Events != nil {
		if _, tick := msg.(spinner.TickMsg); !tick {
			a.cfg.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
		}
	}

	if cmd, handled := a.tracker.Update(msg); handled {
		next := tea.Batch(cmd, a.refresh())
		return a, next
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		next := a.refresh()
		return a, next

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case SourcesLoaded:
		a.loading = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		a.pipeline.SetSources(msg.Sources)
		next := a.refresh()
		return a, next

	case disclose.GrowMsg:
		if a.pipeline.Grow(msg) {
			a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindDiscloseGrow, Count: len(a.pipeline.Rendered())})
		}
		next := a.refresh()
		return a, next

	case ActionDone:
		if msg.Err != nil {
			a.err = fmt.Errorf("%s failed: %w", msg.Action, msg.Err)
			a.emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindRepoAction, Key: msg.Key, Msg: string(msg.Action), Err: msg.Err.Error()})
			next := a.refresh()
			return a, next
		}
		a.status = actionStatus(msg.Action)
		a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRepoAction, Key: msg.Key, Msg: string(msg.Action)})
		if a.cfg.Reload != nil {
			a.loading = true
			return a, a.cfg.Reload()
		}
		return a, nil
	}

	return a, nil
}

func actionStatus(act Action) string {
	switch act {
	case ActionDelete:
		return "deleted"
	case ActionRename:
		return "renamed"
	case ActionToggle:
		return "visibility changed"
	}
	return string(act)
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.input {
	case inputSearch:
		return a.handleSearchKey(msg)
	case inputRename:
		return a.handleRenameKey(msg)
	}

	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}
	a.status = ""
	key := msg.String()
	if key != "x" {
		a.confirmDelete = ""
	}
	if a.cfg.Events != nil && otel.TraceEnabled() {
		a.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Msg: key})
	}

	if a.showDebug {
		switch key {
		case "D", "esc":
			a.showDebug = false
		case "q", "ctrl+c":
			return a, tea.Quit
		}
		return a, nil
	}

	switch key {
	case "q", "ctrl+c":
		a.scene.close()
		return a, tea.Quit

	case "h", "left":
		a.moveCursor(-1, 0)
	case "l", "right":
		a.moveCursor(1, 0)
	case "j", "down":
		a.moveCursor(0, 1)
	case "k", "up":
		a.moveCursor(0, -1)

	case "g", "home":
		a.setCursor(0)
	case "G", "end":
		a.setCursor(len(a.layout.tiles) - 1)

	case "ctrl+d", "pgdown":
		a.page(1)
	case "ctrl+u", "pgup":
		a.page(-1)

	case "1", "2", "3", "4":
		a.setCategory(catalog.Categories[int(key[0]-'1')])
	case "tab":
		a.setCategory(a.nextCategory(1))
	case "shift+tab":
		a.setCategory(a.nextCategory(-1))

	case "/":
		a.input = inputSearch
		a.search.SetValue(a.pipeline.Query())
		a.search.CursorEnd()
		next := tea.Batch(a.search.Focus(), a.refresh())
		return a, next

	case "esc":
		if a.pipeline.Query() != "" {
			a.setQuery("")
		}

	case "m":
		a.mode = otherMode(a.mode)
		a.scroll = 0

	case "r":
		if a.cfg.Reload != nil {
			a.loading = true
			next := tea.Batch(a.cfg.Reload(), a.refresh())
			return a, next
		}

	case "x":
		return a.deleteSelected()
	case "R":
		return a.startRename()
	case "v":
		return a.toggleSelected()

	case "D":
		a.showDebug = true
		return a, nil
	}

	next := a.refresh()
	return a, next
}

func (a App) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.input = inputNone
		a.search.Blur()
		next := a.refresh()
		return a, next
	case "esc":
		a.input = inputNone
		a.search.Blur()
		a.search.SetValue("")
		a.setQuery("")
		next := a.refresh()
		return a, next
	case "ctrl+c":
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	a.setQuery(strings.TrimSpace(a.search.Value()))
	next := tea.Batch(cmd, a.refresh())
	return a, next
}

func (a App) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.input = inputNone
		a.rename.Blur()
		item, ok := a.selected()
		name := strings.TrimSpace(a.rename.Value())
		if !ok {
			next := a.refresh()
			return a, next
		}
		if name == "" {
			a.err = errors.New("rename failed: name cannot be empty")
			next := a.refresh()
			return a, next
		}
		if a.cfg.Rename == nil {
			next := a.refresh()
			return a, next
		}
		next := tea.Batch(a.cfg.Rename(item, name), a.refresh())
		return a, next
	case "esc":
		a.input = inputNone
		a.rename.Blur()
		next := a.refresh()
		return a, next
	case "ctrl+c":
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.rename, cmd = a.rename.Update(msg)
	return a, cmd
}

// deleteSelected needs two presses on the same tile.
func (a App) deleteSelected() (tea.Model, tea.Cmd) {
	item, ok := a.selected()
	if !ok || a.cfg.Delete == nil {
		return a, nil
	}
	if a.confirmDelete != item.Key() {
		a.confirmDelete = item.Key()
		a.status = "press x again to delete " + item.Label()
		return a, nil
	}
	a.confirmDelete = ""
	return a, a.cfg.Delete(item)
}

func (a App) startRename() (tea.Model, tea.Cmd) {
	item, ok := a.selected()
	if !ok || a.cfg.Rename == nil {
		return a, nil
	}
	a.input = inputRename
	a.rename.SetValue(item.Name)
	a.rename.CursorEnd()
	next := tea.Batch(a.rename.Focus(), a.refresh())
	return a, next
}

func (a App) toggleSelected() (tea.Model, tea.Cmd) {
	item, ok := a.selected()
	if !ok || a.cfg.ToggleVisibility == nil {
		return a, nil
	}
	if item.SourceType != media.SourceProject {
		a.err = errors.New("visibility applies to projects only")
		return a, nil
	}
	return a, a.cfg.ToggleVisibility(item)
}

func (a *App) setCategory(c catalog.Category) {
	if a.pipeline.SetCategory(c) {
		a.resetPosition()
		a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindDiscloseReset, Msg: "category " + string(c)})
	}
}

func (a *App) setQuery(q string) {
	if a.pipeline.SetQuery(q) {
		a.resetPosition()
		a.emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindDiscloseReset, Msg: "query"})
	}
}

func (a *App) resetPosition() {
	a.cursor = 0
	a.cursorKey = ""
	a.scroll = 0
}

func (a App) nextCategory(dir int) catalog.Category {
	n := len(catalog.Categories)
	for i, c := range catalog.Categories {
		if c == a.pipeline.Category() {
			return catalog.Categories[((i+dir)%n+n)%n]
		}
	}
	return catalog.CategoryAll
}

func (a *App) moveCursor(dx, dy int) {
	a.setCursor(a.layout.neighbor(a.cursor, dx, dy))
}

func (a *App) setCursor(i int) {
	if len(a.layout.tiles) == 0 {
		a.cursor, a.cursorKey = 0, ""
		return
	}
	a.cursor = clamp(i, 0, len(a.layout.tiles)-1)
	t := a.layout.tiles[a.cursor]
	a.cursorKey = t.item.Key()

	h := a.contentHeight()
	switch {
	case t.line < a.scroll:
		a.scroll = t.line
	case t.line+t.lines > a.scroll+h:
		a.scroll = t.line + t.lines - h
	}
}

// page moves the cursor about one screen of tiles up or down.
func (a *App) page(dir int) {
	for i := 0; i < max(a.contentHeight()/tileLines, 1); i++ {
		a.moveCursor(0, dir)
	}
}

// selected returns the item under the cursor.
func (a App) selected() (media.Item, bool) {
	if a.cursor < 0 || a.cursor >= len(a.layout.tiles) {
		return media.Item{}, false
	}
	return a.layout.tiles[a.cursor].item, true
}

// contentHeight is the number of lines available to tiles.
func (a App) contentHeight() int {
	h := a.height - 2 // tabs + status bar
	if a.showInputBar() {
		h--
	}
	if a.err != nil {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (a App) showInputBar() bool {
	return a.input != inputNone || a.pipeline.Query() != ""
}

// refresh brings every derived stage in line with the pipeline: load
// records, layout, detectors, playback claims and the disclosure trigger.
func (a *App) refresh() tea.Cmd {
	items := a.pipeline.Rendered()
	var cmds []tea.Cmd

	// Images and audio load as soon as they are rendered; videos wait for
	// their own detector.
	cmds = append(cmds, a.tracker.Sync(items, func(it media.Item) bool { return !it.IsVideo() }))

	if a.mode == ModeMasonry {
		a.layout = masonryLayout(items, a.width, a.cfg.Breakpoints, a.cfg.Estimator)
	} else {
		a.layout = gridLayout(items, a.width, a.cfg.Breakpoints)
	}

	// Keep the cursor on the same item across reloads when it survives.
	if i, ok := a.layout.index[a.cursorKey]; ok {
		a.cursor = i
	}
	a.setCursor(a.cursor)

	if !a.ready {
		return tea.Batch(cmds...)
	}

	hasMore := a.pipeline.HasMore()
	a.scene.arrange(a.layout, hasMore, a.width, a.contentHeight(), a.scroll)
	for _, key := range a.scene.drain() {
		cmds = append(cmds, a.tracker.Request(key))
	}

	focus := ""
	if item, ok := a.selected(); ok && item.IsVideo() {
		focus = item.Key()
	}
	a.scene.setFocus(focus)
	a.scene.reconcile(items, a.tracker.Record)

	if hasMore && a.scene.sentinelVisible() {
		cmds = append(cmds, a.pipeline.RequestMore())
	}
	return tea.Batch(cmds...)
}

func (a App) emit(e otel.Event) {
	if a.cfg.Events == nil {
		return
	}
	e.Comp = "ui"
	a.cfg.Events.Emit(e)
}

// observeTransition maps load transitions to events.
func (a App) observeTransition(tr loadstate.Transition) {
	if a.cfg.Events == nil {
		return
	}
	var kind otel.EventKind
	switch tr.Reason {
	case "request", "reassign", "retry":
		kind = otel.KindMediaRequest
	case "decoded":
		kind = otel.KindMediaLoaded
	case "timeout":
		kind = otel.KindMediaTimeout
	case "error":
		kind = otel.KindMediaRetry
		if tr.To.State == loadstate.Failed {
			kind = otel.KindMediaFailed
		}
	default:
		return
	}
	e := otel.Event{
		Level:   otel.LevelDebug,
		Kind:    kind,
		Key:     tr.Key,
		Gen:     tr.To.Generation,
		Attempt: tr.To.Attempt,
		From:    tr.From.State.String(),
		To:      tr.To.State.String(),
	}
	if tr.To.Err != nil && tr.Reason == "error" {
		e.Level = otel.LevelWarn
		e.Err = tr.To.Err.Error()
	}
	a.emit(e)
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug {
		overlay := debugOverlay(a.cfg.Ring, a.width, a.height-1, a.cfg.Now())
		if overlay == "" {
			overlay = HelpStyle.Render("No event buffer attached.")
		}
		placed := lipgloss.Place(a.width, a.height-1, lipgloss.Center, lipgloss.Center, overlay)
		return placed + "\n" + debugStatusBar(a.width)
	}

	parts := []string{renderTabs(a.pipeline.Category(), a.pipeline.Counts(), a.width)}

	switch a.input {
	case inputRename:
		parts = append(parts, renderInputBar("rename: ", a.rename.View(), "", a.width))
	default:
		if a.showInputBar() {
			input := a.search.View()
			if a.input == inputNone {
				input = a.pipeline.Query()
			}
			count := fmt.Sprintf("%d/%d", a.pipeline.Total(), len(a.pipeline.Items()))
			parts = append(parts, renderInputBar("/", input, count, a.width))
		}
	}

	h := a.contentHeight()
	if len(a.layout.tiles) == 0 {
		msg := "No media to display. Import a manifest with `gallery import`."
		if a.loading {
			msg = "Loading media..."
		} else if a.pipeline.Query() != "" {
			msg = "Nothing matches \"" + a.pipeline.Query() + "\"."
		}
		parts = append(parts, lipgloss.NewStyle().Height(h).Render(HelpStyle.Render(msg)))
	} else {
		parts = append(parts, renderContent(a.layout, a.scroll, h, a.frame()))
	}

	// Error bar sits just above the status bar, next to the action keys.
	if a.err != nil {
		parts = append(parts, ErrorStyle.Width(a.width).Render("Error: "+a.err.Error()+" (press any key to dismiss)"))
	}

	parts = append(parts, renderStatusBar(statusInfo{
		shown:       len(a.layout.tiles),
		total:       a.pipeline.Total(),
		loadingMore: a.pipeline.Loading(),
		pending:     a.tracker.Pending(),
		playing:     a.scene.players.Len(),
		capacity:    a.scene.players.Capacity(),
		mode:        a.mode,
		message:     a.status,
	}, a.width))

	return strings.Join(parts, "\n")
}

func (a App) frame() frame {
	return frame{
		now:     a.cfg.Now(),
		spinner: a.spin.View(),
		hasMore: a.pipeline.HasMore(),
		loading: a.pipeline.Loading(),
		state: func(key string) tileState {
			rec, ok := a.tracker.Record(key)
			return tileState{
				rec:      rec,
				tracked:  ok,
				playing:  a.scene.playing(key),
				selected: key == a.cursorKey,
			}
		},
	}
}

// Cursor returns the current cursor position (for testing).
func (a App) Cursor() int {
	return a.cursor
}

// Rendered returns the disclosed items (for testing).
func (a App) Rendered() []media.Item {
	return a.pipeline.Rendered()
}

// Playing returns the keys holding playback slots, oldest first.
func (a App) Playing() []string {
	return a.scene.players.Active()
}
