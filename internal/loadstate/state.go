// Package loadstate tracks per-item media loading: retries transient decode
// failures and enforces a maximum wait before a video is shown anyway.
//
// The machine is explicit. A Record is always in exactly one State and every
// change goes through a method that checks the transition table. Timers are
// Bubble Tea commands tagged with a Ticket; a timer whose ticket no longer
// matches the record is ignored, which is how retries and timeouts are
// cleared on reassignment or removal.
package loadstate

import "fmt"

// State is the load progress of one rendered item.
type State int

const (
	Unrequested State = iota
	Requested
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unrequested:
		return "unrequested"
	case Requested:
		return "requested"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// legal lists every allowed transition. Requested -> Requested is a retry.
// Any state may move to Requested through Reassign.
var legal = map[State][]State{
	Unrequested: {Requested},
	Requested:   {Requested, Loaded, Failed},
	Loaded:      {Requested},
	Failed:      {Requested},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range legal[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Record is the mutable load state of one item.
type Record struct {
	State      State
	Attempt    int // decode failures recorded for the current source, 0..MaxAttempts
	Generation int // bumped whenever the source is refetched or reassigned
	Degraded   bool
	Video      bool
	Err        error // last decode error
}

// Settled reports whether the item no longer needs a loading placeholder.
func (r Record) Settled() bool {
	return r.State == Loaded || r.State == Failed
}

func (r *Record) moveTo(to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("illegal transition %s -> %s", r.State, to)
	}
	r.State = to
	return nil
}

// request moves Unrequested -> Requested.
func (r *Record) request() error {
	if r.State != Unrequested {
		return fmt.Errorf("request from %s", r.State)
	}
	return r.moveTo(Requested)
}

// decoded moves Requested -> Loaded.
func (r *Record) decoded() error {
	if err := r.moveTo(Loaded); err != nil {
		return err
	}
	r.Degraded = false
	r.Err = nil
	return nil
}

// decodeError records a failure and reports whether another attempt is
// allowed. When attempts are exhausted the record becomes Failed.
func (r *Record) decodeError(err error, maxAttempts int) (retry bool, e error) {
	if r.State != Requested {
		return false, fmt.Errorf("decode error in %s", r.State)
	}
	r.Attempt++
	r.Err = err
	if r.Attempt >= maxAttempts {
		return false, r.moveTo(Failed)
	}
	return true, r.moveTo(Requested)
}

// retry starts a fresh fetch for a record waiting out its backoff.
func (r *Record) retry() error {
	if r.State != Requested {
		return fmt.Errorf("retry from %s", r.State)
	}
	if err := r.moveTo(Requested); err != nil {
		return err
	}
	r.Generation++
	return nil
}

// timeout forces a video that never reported a decode into Loaded.
func (r *Record) timeout() error {
	if r.State != Requested {
		return fmt.Errorf("timeout in %s", r.State)
	}
	if err := r.moveTo(Loaded); err != nil {
		return err
	}
	r.Degraded = true
	return nil
}

// reassign treats a new source as a brand new load.
func (r *Record) reassign() {
	r.State = Requested
	r.Attempt = 0
	r.Generation++
	r.Degraded = false
	r.Err = nil
}

// rewind is reassign for a record that has not been requested yet.
func (r *Record) rewind() {
	r.reassign()
	r.State = Unrequested
}
