package ui

import (
	"github.com/abelbrown/gallery/internal/loadstate"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/otel"
	"github.com/abelbrown/gallery/internal/playback"
	"github.com/abelbrown/gallery/internal/visibility"
)

// hold records why a visible video is not playing.
type hold int

const (
	holdNone    hold = iota
	holdEvicted      // lost its slot to a newer video
	holdFocus        // paused because another video has focus
)

type player struct {
	playing bool
	hold    hold
}

// scene owns the per-gallery visibility and playback state. Videos get a
// trigger-once detector that gates their first fetch and a continuous one
// that starts and stops playback as they scroll in and out.
//
// Everything here runs on the Bubble Tea update goroutine; detector
// callbacks fire synchronously from viewport calls.
type scene struct {
	viewport *visibility.Viewport
	opts     visibility.Options
	players  *playback.Manager
	events   *otel.Logger // optional

	lazy     map[string]*visibility.Detector
	live     map[string]*visibility.Detector
	cancels  map[string]func()
	sentinel *visibility.Detector
	pending  []string // keys whose lazy detector fired

	state       map[string]*player
	focus       string
	pauseReason hold
}

func newScene(opts visibility.Options, capacity int, events *otel.Logger) *scene {
	s := &scene{
		viewport:    visibility.NewViewport(0, 0),
		opts:        opts,
		players:     playback.NewManager(capacity),
		events:      events,
		lazy:        make(map[string]*visibility.Detector),
		live:        make(map[string]*visibility.Detector),
		cancels:     make(map[string]func()),
		state:       make(map[string]*player),
		pauseReason: holdEvicted,
	}
	s.players.OnEvict = func(id string) {
		s.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPlaybackEvict, Key: id})
	}
	return s
}

func (s *scene) emit(e otel.Event) {
	if s.events == nil {
		return
	}
	e.Comp = "ui"
	s.events.Emit(e)
}

// arrange moves the root and the targets, then attaches or detaches
// detectors so that exactly the rendered videos are observed.
func (s *scene) arrange(l layout, hasMore bool, width, height, scroll int) {
	s.viewport.Resize(float64(width*cellWidth), float64(height*cellHeight))
	s.viewport.ScrollTo(float64(scroll * cellHeight))
	s.viewport.Layout(l.bounds(hasMore))

	videos := make(map[string]bool)
	for _, t := range l.tiles {
		if t.item.IsVideo() {
			videos[t.item.Key()] = true
		}
	}
	for key := range s.live {
		if !videos[key] {
			s.release(key)
		}
	}
	for _, t := range l.tiles {
		key := t.item.Key()
		if videos[key] && s.live[key] == nil {
			s.attach(key)
		}
	}

	switch {
	case hasMore && s.sentinel == nil:
		s.sentinel = visibility.NewDetector(s.viewport, sentinelKey, s.opts)
	case !hasMore && s.sentinel != nil:
		s.sentinel.Close()
		s.sentinel = nil
	}
}

func (s *scene) attach(key string) {
	once := s.opts
	once.TriggerOnce = true
	lazy := visibility.NewDetector(s.viewport, key, once)
	s.cancels[key] = lazy.Subscribe(func(in bool) {
		if in {
			s.pending = append(s.pending, key)
		}
	})
	// The first delivery happens inside NewDetector, before Subscribe.
	if lazy.HasIntersected() {
		s.pending = append(s.pending, key)
	}
	s.lazy[key] = lazy

	cont := s.opts
	cont.TriggerOnce = false
	s.live[key] = visibility.NewDetector(s.viewport, key, cont)
	s.state[key] = &player{}
}

// release is the unmount path: detectors close, the slot is returned.
func (s *scene) release(key string) {
	if cancel := s.cancels[key]; cancel != nil {
		cancel()
	}
	if d := s.lazy[key]; d != nil {
		d.Close()
	}
	if d := s.live[key]; d != nil {
		d.Close()
	}
	if p := s.state[key]; p != nil && p.playing {
		s.stop(key)
	}
	delete(s.cancels, key)
	delete(s.lazy, key)
	delete(s.live, key)
	delete(s.state, key)
	if s.focus == key {
		s.focus = ""
	}
}

// drain returns and clears the keys that became visible for the first time.
func (s *scene) drain() []string {
	keys := s.pending
	s.pending = nil
	return keys
}

// sentinelVisible reports whether the end-of-list marker is in range.
func (s *scene) sentinelVisible() bool {
	return s.sentinel != nil && s.sentinel.IsIntersecting()
}

// setFocus makes key the only video allowed to play. An empty key, or a
// key that is not a video, lifts focus holds.
func (s *scene) setFocus(key string) {
	if _, video := s.state[key]; !video {
		key = ""
	}
	if key == s.focus {
		return
	}
	s.focus = key
	if key == "" {
		for _, p := range s.state {
			if p.hold == holdFocus {
				p.hold = holdNone
			}
		}
		return
	}
	s.state[key].hold = holdNone
	s.pauseReason = holdFocus
	s.players.PauseAllExcept(key)
	s.pauseReason = holdEvicted
}

// reconcile starts loaded visible videos and stops the ones that left.
func (s *scene) reconcile(items []media.Item, record func(string) (loadstate.Record, bool)) {
	for _, it := range items {
		key := it.Key()
		p := s.state[key]
		if p == nil {
			continue
		}
		live := s.live[key]
		if live == nil || !live.IsIntersecting() {
			if p.playing {
				s.stop(key)
			}
			p.hold = holdNone
			continue
		}
		if p.playing || p.hold != holdNone {
			continue
		}
		if s.focus != "" && s.focus != key {
			continue
		}
		if rec, ok := record(key); ok && rec.State == loadstate.Loaded {
			s.start(key)
		}
	}
}

func (s *scene) start(key string) {
	s.state[key].playing = true
	s.players.Register(key, s.handle(key))
	s.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPlaybackRegister, Key: key, Count: s.players.Len()})
}

func (s *scene) stop(key string) {
	if p := s.state[key]; p != nil {
		p.playing = false
	}
	if s.players.Unregister(key) {
		s.emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPlaybackRelease, Key: key})
	}
}

// handle is what the manager pauses. The owner unregisters itself when
// paused, as the manager expects.
func (s *scene) handle(key string) playback.Handle {
	return playback.HandleFunc(func() {
		if p := s.state[key]; p != nil {
			p.playing = false
			p.hold = s.pauseReason
		}
		s.players.Unregister(key)
	})
}

// playing reports whether key currently holds a playback slot.
func (s *scene) playing(key string) bool {
	p := s.state[key]
	return p != nil && p.playing
}

// close releases every detector and slot.
func (s *scene) close() {
	for key := range s.live {
		s.release(key)
	}
	if s.sentinel != nil {
		s.sentinel.Close()
		s.sentinel = nil
	}
}
