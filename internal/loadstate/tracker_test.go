package loadstate

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/gallery/internal/media"
)

var errDecode = errors.New("decode failed: 503")

// loadRecorder counts fetches started by the tracker.
type loadRecorder struct {
	tickets []Ticket
}

func (l *loadRecorder) load(tk Ticket, _ media.Item) tea.Cmd {
	l.tickets = append(l.tickets, tk)
	return nil
}

func image(id string) media.Item {
	return media.Item{ID: id, SourceType: media.SourceChat, URL: "https://cdn.example.com/" + id + ".png", FileType: media.FileImage}
}

func video(id string) media.Item {
	return media.Item{ID: id, SourceType: media.SourceProject, URL: "https://cdn.example.com/" + id + ".mp4", FileType: media.FileVideo}
}

func mustTicket(t *testing.T, tr *Tracker, key string) Ticket {
	t.Helper()
	tk, ok := tr.Ticket(key)
	if !ok {
		t.Fatalf("no ticket for %s", key)
	}
	return tk
}

func mustRecord(t *testing.T, tr *Tracker, key string) Record {
	t.Helper()
	rec, ok := tr.Record(key)
	if !ok {
		t.Fatalf("no record for %s", key)
	}
	return rec
}

func TestRetryLadder(t *testing.T) {
	rec := &loadRecorder{}
	tr := NewTracker(DefaultConfig(), rec.load)
	item := image("a")
	key := item.Key()

	tr.Track(item, true)
	states := []State{mustRecord(t, tr, key).State}

	for i := 0; i < 3; i++ {
		tk := mustTicket(t, tr, key)
		cmd, handled := tr.Update(DecodeErrorMsg{Ticket: tk, Err: errDecode})
		if !handled {
			t.Fatal("DecodeErrorMsg should be handled")
		}
		r := mustRecord(t, tr, key)
		states = append(states, r.State)

		if i < 2 {
			if cmd == nil {
				t.Fatalf("failure %d should schedule a retry", i+1)
			}
			// Deliver the backoff expiry directly instead of waiting 2s.
			tr.Update(RetryMsg{Ticket: tk})
		} else if cmd != nil {
			t.Fatal("no retry may be scheduled after the final failure")
		}
	}

	want := []State{Requested, Requested, Requested, Failed}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}

	final := mustRecord(t, tr, key)
	if final.Attempt != 3 {
		t.Errorf("Attempt = %d, want 3", final.Attempt)
	}
	if !final.Settled() {
		t.Error("Failed counts as settled")
	}
	if !errors.Is(final.Err, errDecode) {
		t.Errorf("Err = %v", final.Err)
	}
	// Initial fetch plus two retries, each with a fresh generation.
	if len(rec.tickets) != 3 {
		t.Fatalf("expected 3 fetches, got %d", len(rec.tickets))
	}
	for i, tk := range rec.tickets {
		if tk.Generation != i {
			t.Errorf("fetch %d generation = %d, want %d", i, tk.Generation, i)
		}
	}
}

func TestRetryThenSuccess(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	item := image("a")
	tr.Track(item, true)

	tk := mustTicket(t, tr, item.Key())
	tr.Update(DecodeErrorMsg{Ticket: tk, Err: errDecode})
	tr.Update(RetryMsg{Ticket: tk})

	// A late success for the old generation is ignored.
	tr.Update(DecodedMsg{Ticket: tk})
	if mustRecord(t, tr, item.Key()).State != Requested {
		t.Fatal("stale decode must not settle the record")
	}

	tr.Update(DecodedMsg{Ticket: mustTicket(t, tr, item.Key())})
	r := mustRecord(t, tr, item.Key())
	if r.State != Loaded || r.Degraded {
		t.Errorf("record = %+v, want clean Loaded", r)
	}
	if r.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", r.Attempt)
	}
}

func TestDuplicateRetryIgnored(t *testing.T) {
	rec := &loadRecorder{}
	tr := NewTracker(DefaultConfig(), rec.load)
	item := image("a")
	tr.Track(item, true)

	tk := mustTicket(t, tr, item.Key())
	tr.Update(DecodeErrorMsg{Ticket: tk, Err: errDecode})
	// A second error for the same generation during backoff is not a new attempt.
	tr.Update(DecodeErrorMsg{Ticket: tk, Err: errDecode})
	if got := mustRecord(t, tr, item.Key()).Attempt; got != 1 {
		t.Fatalf("Attempt = %d, want 1", got)
	}

	tr.Update(RetryMsg{Ticket: tk})
	tr.Update(RetryMsg{Ticket: tk})
	if len(rec.tickets) != 2 {
		t.Errorf("expected exactly one refetch, got %d fetches", len(rec.tickets))
	}
}

func TestTimeoutDegradesVideoToLoaded(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	item := video("v")
	cmd := tr.Track(item, true)
	if cmd == nil {
		t.Fatal("requesting a video should arm the safety timeout")
	}

	tr.Update(TimeoutMsg{Ticket: mustTicket(t, tr, item.Key())})

	r := mustRecord(t, tr, item.Key())
	if r.State != Loaded {
		t.Fatalf("State = %s, want loaded", r.State)
	}
	if !r.Degraded {
		t.Error("timeout-forced load should be marked degraded")
	}
}

func TestTimeoutIgnoredForImages(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	item := image("a")
	if cmd := tr.Track(item, true); cmd != nil {
		t.Error("images with a nil loader should produce no command")
	}
	tr.Update(TimeoutMsg{Ticket: mustTicket(t, tr, item.Key())})
	if mustRecord(t, tr, item.Key()).State != Requested {
		t.Error("timeout must not apply to images")
	}
}

func TestTimeoutClearedByReassign(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	item := video("v")
	tr.Track(item, true)
	old := mustTicket(t, tr, item.Key())

	moved := item
	moved.URL = "https://cdn.example.com/v-reencoded.mp4"
	tr.Reassign(moved)

	tr.Update(TimeoutMsg{Ticket: old})
	r := mustRecord(t, tr, item.Key())
	if r.State != Requested {
		t.Fatalf("stale timeout forced %s", r.State)
	}
	if r.Generation != old.Generation+1 {
		t.Errorf("Generation = %d, want %d", r.Generation, old.Generation+1)
	}
}

func TestTimersClearedByRemove(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	item := video("v")
	tr.Track(item, true)
	old := mustTicket(t, tr, item.Key())

	tr.Remove(item.Key())
	tr.Track(item, true)

	// Same key and generation, but a different instance.
	tr.Update(TimeoutMsg{Ticket: old})
	if mustRecord(t, tr, item.Key()).State != Requested {
		t.Error("timeout from a removed instance must be ignored")
	}
}

func TestRequestOnlyFromUnrequested(t *testing.T) {
	rec := &loadRecorder{}
	tr := NewTracker(DefaultConfig(), rec.load)
	item := video("v")

	tr.Track(item, false)
	if mustRecord(t, tr, item.Key()).State != Unrequested {
		t.Fatal("deferred track should stay unrequested")
	}
	if len(rec.tickets) != 0 {
		t.Fatal("no fetch before request")
	}

	tr.Request(item.Key())
	tr.Request(item.Key())
	if len(rec.tickets) != 1 {
		t.Errorf("expected one fetch, got %d", len(rec.tickets))
	}
}

func TestSync(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	a, b, c := image("a"), image("b"), video("c")

	tr.Sync([]media.Item{a, b, c}, func(it media.Item) bool { return !it.IsVideo() })
	if tr.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tr.Len())
	}
	if mustRecord(t, tr, c.Key()).State != Unrequested {
		t.Error("video should wait for visibility")
	}
	if mustRecord(t, tr, a.Key()).State != Requested {
		t.Error("image should be requested immediately")
	}
	if tr.Pending() != 3 {
		t.Errorf("Pending = %d, want 3", tr.Pending())
	}

	b2 := b
	b2.URL = "https://cdn.example.com/b-v2.png"
	tr.Sync([]media.Item{b2, c}, nil)
	if _, ok := tr.Record(a.Key()); ok {
		t.Error("a left the prefix and should be removed")
	}
	if got := mustRecord(t, tr, b.Key()).Generation; got != 1 {
		t.Errorf("reassigned b generation = %d, want 1", got)
	}
	if mustRecord(t, tr, c.Key()).State != Requested {
		t.Error("nil immediate func requests everything")
	}
}

func TestUnrequestedVideoKeepsWaitingAfterNewSource(t *testing.T) {
	rec := &loadRecorder{}
	tr := NewTracker(DefaultConfig(), rec.load)
	v := video("v")
	notVideo := func(it media.Item) bool { return !it.IsVideo() }

	tr.Sync([]media.Item{v}, notVideo)
	moved := v
	moved.URL = "https://cdn.example.com/v-v2.mp4"
	if cmd := tr.Sync([]media.Item{moved}, notVideo); cmd != nil {
		if msg := cmd(); msg != nil {
			t.Errorf("new source for an offscreen video produced %T", msg)
		}
	}

	r := mustRecord(t, tr, v.Key())
	if r.State != Unrequested {
		t.Fatalf("state = %s, want Unrequested until visible", r.State)
	}
	if r.Generation != 1 {
		t.Errorf("generation = %d, want 1", r.Generation)
	}
	if len(rec.tickets) != 0 {
		t.Errorf("fetches = %d, want 0", len(rec.tickets))
	}

	tr.Request(v.Key())
	if len(rec.tickets) != 1 || rec.tickets[0].Generation != 1 {
		t.Errorf("fetch tickets = %+v, want one at generation 1", rec.tickets)
	}
}

func TestObserveHook(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	var reasons []string
	tr.Observe = func(tn Transition) { reasons = append(reasons, tn.Reason) }

	item := video("v")
	tr.Track(item, true)
	tk := mustTicket(t, tr, item.Key())
	tr.Update(DecodeErrorMsg{Ticket: tk, Err: errDecode})
	tr.Update(RetryMsg{Ticket: tk})
	tr.Update(TimeoutMsg{Ticket: mustTicket(t, tr, item.Key())})

	want := []string{"request", "error", "retry", "timeout"}
	if len(reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("reasons = %v, want %v", reasons, want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(Requested, Requested) {
		t.Error("retry is Requested -> Requested")
	}
	if CanTransition(Unrequested, Loaded) {
		t.Error("cannot load without a request")
	}
	if CanTransition(Failed, Loaded) {
		t.Error("Failed is terminal until reassigned")
	}
	if !CanTransition(Failed, Requested) {
		t.Error("reassign restarts a failed item")
	}
}

func TestUpdateIgnoresForeignMessages(t *testing.T) {
	tr := NewTracker(DefaultConfig(), nil)
	if _, handled := tr.Update(tea.WindowSizeMsg{}); handled {
		t.Error("tracker should not claim unrelated messages")
	}
}
