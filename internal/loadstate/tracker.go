package loadstate

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/gallery/internal/media"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
	DefaultTimeout     = 8 * time.Second
)

// Config tunes the retry ladder and the video safety timeout.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration
}

// DefaultConfig returns 3 attempts, 2s backoff, 8s video timeout.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Timeout:     DefaultTimeout,
	}
}

// Ticket identifies one load of one item. Instance changes when an item
// leaves and re-enters the tracker; Generation changes on every refetch.
type Ticket struct {
	Key        string
	Instance   uint64
	Generation int
}

// DecodedMsg reports that the media produced its first frame (or header).
type DecodedMsg struct {
	Ticket Ticket
}

// DecodeErrorMsg reports a failed load.
type DecodeErrorMsg struct {
	Ticket Ticket
	Err    error
}

// RetryMsg fires when a backoff elapses.
type RetryMsg struct {
	Ticket Ticket
}

// TimeoutMsg fires when a video has waited the full safety timeout.
type TimeoutMsg struct {
	Ticket Ticket
}

// LoadFunc starts fetching item for ticket. The returned command must
// eventually produce a DecodedMsg or DecodeErrorMsg carrying the same ticket.
type LoadFunc func(ticket Ticket, item media.Item) tea.Cmd

// Transition is reported to the Observe hook after every state change.
type Transition struct {
	Key    string
	From   Record
	To     Record
	Reason string // "request", "decoded", "error", "retry", "timeout", "reassign", "rewind"
}

type entry struct {
	rec      Record
	item     media.Item
	instance uint64
	backoff  bool // a retry is scheduled for the current generation
}

func (e *entry) ticket() Ticket {
	return Ticket{Key: e.item.Key(), Instance: e.instance, Generation: e.rec.Generation}
}

// Tracker owns the load records of every rendered item.
// Not goroutine-safe: it is driven from the Bubble Tea update loop.
type Tracker struct {
	cfg     Config
	load    LoadFunc
	entries map[string]*entry
	seq     uint64

	// Observe, if set, is called after every transition.
	Observe func(Transition)
}

// NewTracker creates a Tracker. load may be nil (no fetch is started).
func NewTracker(cfg Config, load LoadFunc) *Tracker {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	return &Tracker{
		cfg:     cfg,
		load:    load,
		entries: make(map[string]*entry),
	}
}

// Len returns the number of tracked items.
func (t *Tracker) Len() int { return len(t.entries) }

// Record returns the current record for key.
func (t *Tracker) Record(key string) (Record, bool) {
	e, ok := t.entries[key]
	if !ok {
		return Record{}, false
	}
	return e.rec, true
}

// Ticket returns the current ticket for key.
func (t *Tracker) Ticket(key string) (Ticket, bool) {
	e, ok := t.entries[key]
	if !ok {
		return Ticket{}, false
	}
	return e.ticket(), true
}

// Pending counts tracked items that are not settled yet.
func (t *Tracker) Pending() int {
	n := 0
	for _, e := range t.entries {
		if !e.rec.Settled() {
			n++
		}
	}
	return n
}

// Track starts tracking item in Unrequested. When immediate is true the
// item is requested right away. Tracking an already tracked item with the
// same URL is a no-op; a changed URL is a reassignment.
func (t *Tracker) Track(item media.Item, immediate bool) tea.Cmd {
	key := item.Key()
	if e, ok := t.entries[key]; ok {
		if e.item.URL != item.URL {
			if e.rec.State == Unrequested && !immediate {
				return t.rewind(e, item)
			}
			return t.reassign(e, item)
		}
		e.item = item
		if immediate && e.rec.State == Unrequested {
			return t.Request(key)
		}
		return nil
	}

	t.seq++
	e := &entry{
		item:     item,
		instance: t.seq,
		rec:      Record{State: Unrequested, Video: item.IsVideo()},
	}
	t.entries[key] = e
	if immediate {
		return t.Request(key)
	}
	return nil
}

// Request moves an Unrequested item to Requested and starts the fetch.
// Videos also arm the safety timeout.
func (t *Tracker) Request(key string) tea.Cmd {
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	from := e.rec
	if err := e.rec.request(); err != nil {
		return nil
	}
	t.notify(key, from, e.rec, "request")
	return t.startLoad(e)
}

// Reassign gives item a new source and restarts loading from scratch.
func (t *Tracker) Reassign(item media.Item) tea.Cmd {
	e, ok := t.entries[item.Key()]
	if !ok {
		return t.Track(item, true)
	}
	return t.reassign(e, item)
}

func (t *Tracker) reassign(e *entry, item media.Item) tea.Cmd {
	from := e.rec
	e.item = item
	e.rec.Video = item.IsVideo()
	e.rec.reassign()
	e.backoff = false
	t.notify(item.Key(), from, e.rec, "reassign")
	return t.startLoad(e)
}

// rewind gives an item that was never requested a new source. It stays
// Unrequested so that a video still waits for visibility.
func (t *Tracker) rewind(e *entry, item media.Item) tea.Cmd {
	from := e.rec
	e.item = item
	e.rec.Video = item.IsVideo()
	e.rec.rewind()
	e.backoff = false
	t.notify(item.Key(), from, e.rec, "rewind")
	return nil
}

// Remove stops tracking key. Pending timers for it become no-ops.
func (t *Tracker) Remove(key string) {
	delete(t.entries, key)
}

// Sync makes the tracked set equal to items: new items are tracked, items no
// longer present are removed, and items whose URL changed are reassigned.
// immediate decides which new items are requested straight away.
func (t *Tracker) Sync(items []media.Item, immediate func(media.Item) bool) tea.Cmd {
	keep := make(map[string]bool, len(items))
	var cmds []tea.Cmd
	for _, item := range items {
		keep[item.Key()] = true
		now := immediate == nil || immediate(item)
		cmds = append(cmds, t.Track(item, now))
	}
	for key := range t.entries {
		if !keep[key] {
			t.Remove(key)
		}
	}
	return tea.Batch(cmds...)
}

// Update handles load messages. handled is false for messages that do not
// belong to the tracker.
func (t *Tracker) Update(msg tea.Msg) (cmd tea.Cmd, handled bool) {
	switch msg := msg.(type) {
	case DecodedMsg:
		return t.onDecoded(msg.Ticket), true
	case DecodeErrorMsg:
		return t.onError(msg.Ticket, msg.Err), true
	case RetryMsg:
		return t.onRetry(msg.Ticket), true
	case TimeoutMsg:
		return t.onTimeout(msg.Ticket), true
	}
	return nil, false
}

// current returns the entry for ticket, or nil when the ticket is stale.
func (t *Tracker) current(tk Ticket) *entry {
	e, ok := t.entries[tk.Key]
	if !ok || e.instance != tk.Instance || e.rec.Generation != tk.Generation {
		return nil
	}
	return e
}

func (t *Tracker) onDecoded(tk Ticket) tea.Cmd {
	e := t.current(tk)
	if e == nil || e.rec.State != Requested {
		return nil
	}
	from := e.rec
	if err := e.rec.decoded(); err != nil {
		return nil
	}
	e.backoff = false
	t.notify(tk.Key, from, e.rec, "decoded")
	return nil
}

func (t *Tracker) onError(tk Ticket, err error) tea.Cmd {
	e := t.current(tk)
	if e == nil || e.backoff {
		return nil
	}
	from := e.rec
	retry, terr := e.rec.decodeError(err, t.cfg.MaxAttempts)
	if terr != nil {
		return nil
	}
	t.notify(tk.Key, from, e.rec, "error")
	if !retry {
		return nil
	}
	e.backoff = true
	return t.after(t.cfg.Backoff, func() tea.Msg { return RetryMsg{Ticket: tk} })
}

func (t *Tracker) onRetry(tk Ticket) tea.Cmd {
	e := t.current(tk)
	if e == nil || !e.backoff {
		return nil
	}
	from := e.rec
	if err := e.rec.retry(); err != nil {
		return nil
	}
	e.backoff = false
	t.notify(tk.Key, from, e.rec, "retry")
	return t.startLoad(e)
}

func (t *Tracker) onTimeout(tk Ticket) tea.Cmd {
	e := t.current(tk)
	if e == nil || !e.rec.Video || e.rec.State != Requested {
		return nil
	}
	from := e.rec
	if err := e.rec.timeout(); err != nil {
		return nil
	}
	e.backoff = false
	t.notify(tk.Key, from, e.rec, "timeout")
	return nil
}

// startLoad issues the fetch for the current generation and, for videos,
// the safety timeout.
func (t *Tracker) startLoad(e *entry) tea.Cmd {
	tk := e.ticket()
	var cmds []tea.Cmd
	if t.load != nil {
		cmds = append(cmds, t.load(tk, e.item))
	}
	if e.rec.Video && t.cfg.Timeout > 0 {
		cmds = append(cmds, t.after(t.cfg.Timeout, func() tea.Msg { return TimeoutMsg{Ticket: tk} }))
	}
	return tea.Batch(cmds...)
}

func (t *Tracker) after(d time.Duration, fn func() tea.Msg) tea.Cmd {
	if d <= 0 {
		return fn
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return fn() })
}

func (t *Tracker) notify(key string, from, to Record, reason string) {
	if t.Observe != nil {
		t.Observe(Transition{Key: key, From: from, To: to, Reason: reason})
	}
}
