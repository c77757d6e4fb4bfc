// Package otel records structured gallery events.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// them asynchronously through a buffered channel; an optional RingBuffer
// keeps the most recent ones for the in-app debug overlay.
package otel

import (
	"encoding/json"
	"strings"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Media load lifecycle
	KindMediaRequest EventKind = "media.request"
	KindMediaLoaded  EventKind = "media.loaded"
	KindMediaRetry   EventKind = "media.retry"
	KindMediaFailed  EventKind = "media.failed"
	KindMediaTimeout EventKind = "media.timeout"
	KindMediaProbe   EventKind = "media.probe"

	// Playback slots
	KindPlaybackRegister EventKind = "playback.register"
	KindPlaybackEvict    EventKind = "playback.evict"
	KindPlaybackRelease  EventKind = "playback.release"

	// Progressive disclosure
	KindDiscloseGrow  EventKind = "disclose.grow"
	KindDiscloseReset EventKind = "disclose.reset"

	// Repository
	KindRepoLoad   EventKind = "repo.load"
	KindRepoError  EventKind = "repo.error"
	KindRepoAction EventKind = "repo.action"

	// UI
	KindKeyPress EventKind = "ui.key"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Message tracing (GALLERY_TRACE)
	KindMsgReceived EventKind = "trace.msg_received"
)

// Subsystem returns the part of the kind before the first dot.
func (k EventKind) Subsystem() string {
	s, _, _ := strings.Cut(string(k), ".")
	return s
}

// Event is the universal record. Every field except Kind and Time is
// optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "ui", "coord", "store", "probe", "main"
	SessionID string         `json:"session_id,omitempty"`
	Key       string         `json:"key,omitempty"` // media item key
	Gen       int            `json:"gen,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	From      string         `json:"from,omitempty"` // prior load state
	To        string         `json:"to,omitempty"`
	URL       string         `json:"url,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if e.Dur > 0 {
		p.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(p)
}

// UnmarshalJSON restores Dur from DurMs.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	if p.DurMs > 0 {
		e.Dur = time.Duration(p.DurMs * float64(time.Millisecond))
	}
	return nil
}
