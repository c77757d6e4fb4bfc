package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/gallery/internal/disclose"
	"github.com/abelbrown/gallery/internal/loadstate"
	"github.com/abelbrown/gallery/internal/media"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// mockCmd records repository calls made through the injected closures.
type mockCmd struct {
	reloads   int
	deleted   []string
	renamed   map[string]string
	toggled   []string
	actionErr error
	loads     map[string]int
	loadMsg   func(tk loadstate.Ticket) tea.Msg
}

func newMock() *mockCmd {
	return &mockCmd{renamed: make(map[string]string), loads: make(map[string]int)}
}

func (m *mockCmd) reload() tea.Cmd {
	m.reloads++
	return nil
}

func (m *mockCmd) delete(item media.Item) tea.Cmd {
	m.deleted = append(m.deleted, item.Key())
	return func() tea.Msg { return ActionDone{Action: ActionDelete, Key: item.Key(), Err: m.actionErr} }
}

func (m *mockCmd) rename(item media.Item, name string) tea.Cmd {
	m.renamed[item.Key()] = name
	return func() tea.Msg { return ActionDone{Action: ActionRename, Key: item.Key(), Err: m.actionErr} }
}

func (m *mockCmd) toggle(item media.Item) tea.Cmd {
	m.toggled = append(m.toggled, item.Key())
	return func() tea.Msg { return ActionDone{Action: ActionToggle, Key: item.Key(), Err: m.actionErr} }
}

func (m *mockCmd) load(tk loadstate.Ticket, item media.Item) tea.Cmd {
	m.loads[tk.Key]++
	if m.loadMsg == nil {
		return func() tea.Msg { return loadstate.DecodedMsg{Ticket: tk} }
	}
	return func() tea.Msg { return m.loadMsg(tk) }
}

func testConfig(m *mockCmd) AppConfig {
	return AppConfig{
		Disclosure:       disclose.Config{Floor: 30, Initial: 40, Step: 30},
		Loading:          loadstate.Config{MaxAttempts: 3},
		Load:             m.load,
		Reload:           m.reload,
		Delete:           m.delete,
		Rename:           m.rename,
		ToggleVisibility: m.toggle,
		PlaybackCapacity: 3,
		Now:              func() time.Time { return base.Add(time.Hour) },
	}
}

// runCmd executes cmd and flattens batches. Commands that block (cursor
// blink, spinner frames) are abandoned after a short wait.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, runCmd(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// relevant reports whether msg is one the app reacts to in tests.
func relevant(msg tea.Msg) bool {
	switch msg.(type) {
	case loadstate.DecodedMsg, loadstate.DecodeErrorMsg, loadstate.RetryMsg, loadstate.TimeoutMsg,
		disclose.GrowMsg, SourcesLoaded, ActionDone:
		return true
	}
	return false
}

// pump feeds msg to the app and keeps delivering the messages its commands
// produce until things settle.
func pump(t *testing.T, app App, msg tea.Msg) App {
	t.Helper()
	queue := []tea.Msg{msg}
	for i := 0; len(queue) > 0; i++ {
		if i > 2000 {
			t.Fatal("pump did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		model, cmd := app.Update(next)
		app = model.(App)
		for _, m := range runCmd(cmd) {
			if relevant(m) {
				queue = append(queue, m)
			}
		}
	}
	return app
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func uploads(n int) media.Sources {
	var src media.Sources
	for i := 0; i < n; i++ {
		src.Unassigned = append(src.Unassigned, media.Attachment{
			ID:        fmt.Sprintf("u%03d", i),
			URL:       fmt.Sprintf("https://cdn.example.com/u%03d.png", i),
			FileType:  media.FileImage,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return src
}

// sized returns an app that has received a window size.
func sized(t *testing.T, cfg AppConfig, w, h int) App {
	t.Helper()
	return pump(t, NewApp(cfg), tea.WindowSizeMsg{Width: w, Height: h})
}

func TestAppInit(t *testing.T) {
	mock := newMock()
	app := NewApp(testConfig(mock))

	if cmd := app.Init(); cmd == nil {
		t.Fatal("Init should return a command")
	}
	if mock.reloads != 1 {
		t.Errorf("Init should call Reload once, got %d", mock.reloads)
	}
}

func TestAppInitNilReload(t *testing.T) {
	app := NewApp(AppConfig{})
	if cmd := app.Init(); cmd == nil {
		t.Error("Init should still start the spinner")
	}
}

func TestInitialWindowLoadsImages(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(100)})

	if got := len(app.Rendered()); got != 40 {
		t.Fatalf("rendered %d items, want 40", got)
	}
	if app.tracker.Len() != 40 {
		t.Errorf("tracker holds %d items, want 40", app.tracker.Len())
	}
	for _, it := range app.Rendered() {
		rec, _ := app.tracker.Record(it.Key())
		if rec.State != loadstate.Loaded {
			t.Fatalf("%s is %s, want loaded", it.Key(), rec.State)
		}
	}
	if mock.loads["unassigned:u050"] != 0 {
		t.Error("items past the disclosed prefix must not load")
	}
}

func TestScrollToEndDisclosesMore(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(100)})

	app = pump(t, app, key("G"))
	if got := len(app.Rendered()); got != 70 {
		t.Fatalf("after scrolling to the end rendered %d, want 70", got)
	}

	// The uploads tab resets disclosure to the floor on the next pass.
	model, cmd := app.Update(key("3"))
	app = model.(App)
	if got := len(app.Rendered()); got != 30 {
		t.Errorf("after category change rendered %d, want 30", got)
	}
	if app.tracker.Len() != 30 {
		t.Errorf("unmounted items should leave the tracker, have %d", app.tracker.Len())
	}
	if app.Cursor() != 0 {
		t.Errorf("cursor = %d after category change", app.Cursor())
	}

	// Thirty tiles leave the sentinel on screen, so one more step follows.
	for _, m := range runCmd(cmd) {
		if relevant(m) {
			app = pump(t, app, m)
		}
	}
	if got := len(app.Rendered()); got != 60 {
		t.Errorf("sentinel in view should grow to 60, rendered %d", got)
	}
}

func TestDisclosureStopsAtTotal(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(100)})

	for i := 0; i < 5; i++ {
		app = pump(t, app, key("G"))
	}
	if got := len(app.Rendered()); got != 100 {
		t.Fatalf("rendered %d, want all 100", got)
	}
	if app.pipeline.HasMore() {
		t.Error("HasMore should be false once everything is rendered")
	}
}

func TestGridNavigation(t *testing.T) {
	app := sized(t, testConfig(newMock()), 120, 40) // 3 columns
	app = pump(t, app, SourcesLoaded{Sources: uploads(10)})

	steps := []struct {
		key  string
		want int
	}{
		{"l", 1},
		{"j", 4},
		{"j", 7},
		{"h", 6},
		{"k", 3},
		{"G", 9},
		{"j", 9},
		{"g", 0},
		{"k", 0},
	}
	for _, s := range steps {
		app = pump(t, app, key(s.key))
		if app.Cursor() != s.want {
			t.Fatalf("after %q cursor = %d, want %d", s.key, app.Cursor(), s.want)
		}
	}
}

func TestSearchNarrowsAndClears(t *testing.T) {
	src := media.Sources{Chats: []media.ChatGroup{
		{ChatID: "c1", ChatName: "Alpine trip", Attachments: []media.Attachment{
			{ID: "a1", URL: "https://x/a1.png", FileType: media.FileImage, CreatedAt: base},
			{ID: "a2", URL: "https://x/a2.png", FileType: media.FileImage, CreatedAt: base},
		}},
		{ChatID: "c2", ChatName: "Beach", Attachments: []media.Attachment{
			{ID: "b1", URL: "https://x/b1.png", FileType: media.FileImage, CreatedAt: base},
		}},
	}}
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: src})

	app = pump(t, app, key("/"))
	app = pump(t, app, key("ALP"))
	if got := len(app.Rendered()); got != 2 {
		t.Fatalf("query matched %d items, want 2", got)
	}
	if !strings.Contains(app.View(), "2/3") {
		t.Error("search bar should show the match count")
	}

	app = pump(t, app, key("esc"))
	if got := len(app.Rendered()); got != 3 {
		t.Errorf("esc should clear the query, rendered %d", got)
	}
}

func TestRetryLadderEndsFailed(t *testing.T) {
	mock := newMock()
	mock.loadMsg = func(tk loadstate.Ticket) tea.Msg {
		return loadstate.DecodeErrorMsg{Ticket: tk, Err: errors.New("503")}
	}
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(1)})

	rec, ok := app.tracker.Record("unassigned:u000")
	if !ok {
		t.Fatal("item not tracked")
	}
	if rec.State != loadstate.Failed || rec.Attempt != 3 {
		t.Errorf("record = %s attempt %d, want failed after 3", rec.State, rec.Attempt)
	}
	if mock.loads["unassigned:u000"] != 3 {
		t.Errorf("loaded %d times, want 3", mock.loads["unassigned:u000"])
	}
	if !strings.Contains(app.View(), "unavailable") {
		t.Error("failed tile should show a fallback indicator")
	}
}

func videos(n int, withLeadingImage bool) media.Sources {
	var src media.Sources
	if withLeadingImage {
		src.Unassigned = append(src.Unassigned, media.Attachment{
			ID: "img", URL: "https://x/img.png", FileType: media.FileImage, CreatedAt: base.Add(time.Minute),
		})
	}
	for i := 1; i <= n; i++ {
		src.Projects = append(src.Projects, media.VideoProject{
			ID:        fmt.Sprintf("v%d", i),
			Name:      fmt.Sprintf("Video %d", i),
			VideoURL:  fmt.Sprintf("https://x/v%d.mp4", i),
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return src
}

func TestPlaybackBoundedToCapacity(t *testing.T) {
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: videos(5, true)})

	got := app.Playing()
	want := []string{"project:v3", "project:v4", "project:v5"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("playing = %v, want %v", got, want)
	}
}

func TestFocusPausesOthers(t *testing.T) {
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: videos(5, true)})

	app = pump(t, app, key("l")) // onto v1
	if got := app.Playing(); len(got) != 1 || got[0] != "project:v1" {
		t.Fatalf("focused playback = %v, want only project:v1", got)
	}

	app = pump(t, app, key("h")) // back to the image
	if got := app.Playing(); len(got) != 3 {
		t.Errorf("after focus leaves, %d playing, want 3", len(got))
	}
}

func TestOffscreenVideoWaitsForVisibility(t *testing.T) {
	src := uploads(39)
	src.Projects = []media.VideoProject{{
		ID: "late", Name: "Late", VideoURL: "https://x/late.mp4", CreatedAt: base.Add(-24 * time.Hour),
	}}
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 20) // 18 content lines
	app = pump(t, app, SourcesLoaded{Sources: src})

	rec, ok := app.tracker.Record("project:late")
	if !ok || rec.State != loadstate.Unrequested {
		t.Fatalf("offscreen video = %+v, want unrequested", rec)
	}

	app = pump(t, app, key("G"))
	rec, _ = app.tracker.Record("project:late")
	if rec.State != loadstate.Loaded {
		t.Errorf("video in view = %s, want loaded", rec.State)
	}
	if mock.loads["project:late"] != 1 {
		t.Errorf("video loaded %d times", mock.loads["project:late"])
	}
}

func TestVideoTimeoutDegrades(t *testing.T) {
	mock := newMock()
	mock.loadMsg = func(loadstate.Ticket) tea.Msg { return nil }
	cfg := testConfig(mock)
	cfg.Loading.Timeout = time.Millisecond

	app := sized(t, cfg, 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: videos(1, false)})

	rec, _ := app.tracker.Record("project:v1")
	if rec.State != loadstate.Loaded || !rec.Degraded {
		t.Errorf("record = %+v, want degraded load", rec)
	}
	if !strings.Contains(app.View(), "unconfirmed") {
		t.Error("degraded tile should be marked")
	}
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(3)})

	app = pump(t, app, key("x"))
	if len(mock.deleted) != 0 {
		t.Fatal("first x should only ask for confirmation")
	}
	if !strings.Contains(app.View(), "press x again") {
		t.Error("confirmation prompt missing")
	}

	reloads := mock.reloads
	app = pump(t, app, key("x"))
	if len(mock.deleted) != 1 || mock.deleted[0] != "unassigned:u000" {
		t.Fatalf("deleted = %v", mock.deleted)
	}
	if mock.reloads != reloads+1 {
		t.Error("successful delete should reload the collection")
	}
}

func TestActionFailureIsReported(t *testing.T) {
	mock := newMock()
	mock.actionErr = errors.New("permission denied")
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(3)})

	reloads := mock.reloads
	app = pump(t, app, key("x"))
	app = pump(t, app, key("x"))

	if app.err == nil || !strings.Contains(app.err.Error(), "delete failed") {
		t.Fatalf("err = %v", app.err)
	}
	if mock.reloads != reloads {
		t.Error("failed action must not reload")
	}
	if app.pipeline.Total() != 3 {
		t.Errorf("collection changed to %d items on failure", app.pipeline.Total())
	}
	if !strings.Contains(app.View(), "permission denied") {
		t.Error("error bar should show the failure")
	}

	app = pump(t, app, key("j"))
	if app.err != nil {
		t.Error("any key should dismiss the error")
	}
}

func TestRename(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: videos(1, false)})

	app = pump(t, app, key("R"))
	if app.input != inputRename {
		t.Fatal("R should open the rename prompt")
	}
	app = pump(t, app, key(" cut"))
	app = pump(t, app, key("enter"))

	if got := mock.renamed["project:v1"]; got != "Video 1 cut" {
		t.Errorf("renamed to %q", got)
	}
}

func TestRenameRejectsBlank(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(1)})

	app = pump(t, app, key("R"))
	app = pump(t, app, key("enter"))
	if len(mock.renamed) != 0 {
		t.Error("blank name should not reach the repository")
	}
	if app.err == nil {
		t.Error("blank name should report an error")
	}
}

func TestToggleOnlyProjects(t *testing.T) {
	mock := newMock()
	app := sized(t, testConfig(mock), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: videos(1, true)})

	app = pump(t, app, key("v")) // cursor on the image
	if len(mock.toggled) != 0 || app.err == nil {
		t.Errorf("toggle on an attachment: toggled=%v err=%v", mock.toggled, app.err)
	}

	app = pump(t, app, key("l"))
	app = pump(t, app, key("v"))
	if len(mock.toggled) != 1 || mock.toggled[0] != "project:v1" {
		t.Errorf("toggled = %v", mock.toggled)
	}
}

func TestCursorSurvivesReload(t *testing.T) {
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(10)})
	app = pump(t, app, key("l"))
	app = pump(t, app, key("l")) // u002

	// A newer item arrives at the front.
	src := uploads(10)
	src.Unassigned = append(src.Unassigned, media.Attachment{
		ID: "new", URL: "https://x/new.png", FileType: media.FileImage, CreatedAt: base.Add(time.Hour),
	})
	app = pump(t, app, SourcesLoaded{Sources: src})

	if got := app.Rendered()[app.Cursor()].Key(); got != "unassigned:u002" {
		t.Errorf("cursor moved to %s", got)
	}
}

func TestSourcesLoadedError(t *testing.T) {
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: uploads(3)})
	app = pump(t, app, SourcesLoaded{Err: errors.New("database is locked")})

	if app.err == nil {
		t.Fatal("expected error")
	}
	if app.pipeline.Total() != 3 {
		t.Error("a failed reload must keep the last collection")
	}
}

func TestMasonryMode(t *testing.T) {
	src := videos(4, false)
	src.Projects[0].Description = strings.Repeat("long description ", 20)
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, SourcesLoaded{Sources: src})

	app = pump(t, app, key("m"))
	if app.mode != ModeMasonry {
		t.Fatal("m should switch to masonry")
	}
	first, _ := app.layout.tileAt("project:v1")
	if first.lines <= tileLines {
		t.Errorf("described tile has %d lines, want taller than %d", first.lines, tileLines)
	}
	if !strings.Contains(app.View(), "long description") {
		t.Error("masonry tiles should show descriptions")
	}
}

func TestDebugOverlayToggle(t *testing.T) {
	app := sized(t, testConfig(newMock()), 120, 40)
	app = pump(t, app, key("D"))
	if !app.showDebug {
		t.Fatal("D should open the debug overlay")
	}
	if !strings.Contains(app.View(), "[DEBUG]") {
		t.Error("debug status bar missing")
	}
	app = pump(t, app, key("D"))
	if app.showDebug {
		t.Error("D should close the debug overlay")
	}
}

func TestAppQuit(t *testing.T) {
	app := NewApp(AppConfig{})

	_, cmd := app.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should return tea.Quit")
	}
}

func TestAppViewBeforeReady(t *testing.T) {
	app := NewApp(AppConfig{})
	if app.View() != "Loading..." {
		t.Errorf("View before size = %q", app.View())
	}
}

func TestFirstFrameShowsLoadingUntilSources(t *testing.T) {
	app := NewApp(testConfig(newMock()))
	app.Init()
	m, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	app = m.(App)

	if !strings.Contains(app.View(), "Loading media...") {
		t.Fatalf("first frame should show loading, got:\n%s", app.View())
	}

	m, _ = app.Update(SourcesLoaded{})
	app = m.(App)
	if !strings.Contains(app.View(), "No media to display") {
		t.Errorf("empty collection should say so once loaded, got:\n%s", app.View())
	}
}

func TestNoReloadMeansNotLoading(t *testing.T) {
	app := NewApp(AppConfig{})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if strings.Contains(m.(App).View(), "Loading media...") {
		t.Error("without a loader the gallery should not claim to be loading")
	}
}
