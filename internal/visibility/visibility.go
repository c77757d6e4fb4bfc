// Package visibility reports whether an element overlaps an expanded
// viewport. The host supplies the observation capability (Observer); the
// Detector turns its threshold-crossing callbacks into a live flag, a sticky
// "has ever been visible" flag and an explicit subscribe/cancel contract.
package visibility

import "sync"

const (
	DefaultThreshold  = 0.1
	DefaultRootMargin = "50px"
)

// Rect is an axis-aligned box in host units.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) area() float64 { return r.W * r.H }

// intersect returns the overlap of a and b and whether they touch at all.
func intersect(a, b Rect) (Rect, bool) {
	x0, y0 := max(a.X, b.X), max(a.Y, b.Y)
	x1, y1 := min(a.X+a.W, b.X+b.W), min(a.Y+a.H, b.Y+b.H)
	if x1 < x0 || y1 < y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

// Ratio returns the fraction of target's area inside root and whether they
// touch. Zero-area targets (a sentinel line) count as fully inside when
// they touch.
func Ratio(target, root Rect) (float64, bool) {
	in, ok := intersect(target, root)
	if !ok {
		return 0, false
	}
	if target.area() <= 0 {
		return 1, true
	}
	return in.area() / target.area(), true
}

// Options configures one observation.
type Options struct {
	Threshold   float64 // fraction of the target that must be inside
	RootMargin  string  // CSS margin shorthand applied to the root
	TriggerOnce bool    // freeze after the first visible report
}

// DefaultOptions returns threshold 0.1, root margin 50px, continuous.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, RootMargin: DefaultRootMargin}
}

// Entry is one observation delivered to a callback.
type Entry struct {
	Target         string
	Ratio          float64
	IsIntersecting bool
}

// Subscription cancels an observation.
type Subscription interface {
	Cancel()
}

// CancelFunc adapts a function to Subscription.
type CancelFunc func()

// Cancel calls f.
func (f CancelFunc) Cancel() { f() }

// Observer is the host capability: deliver an Entry for target now and
// whenever it crosses opts.Threshold within the root expanded by
// opts.RootMargin.
type Observer interface {
	Observe(target string, opts Options, fn func(Entry)) Subscription
}

// Detector tracks one target.
type Detector struct {
	mu           sync.Mutex
	target       string
	triggerOnce  bool
	intersecting bool
	has          bool
	frozen       bool
	sub          Subscription
	listeners    map[int]func(bool)
	nextID       int
}

// NewDetector starts observing target through obs.
func NewDetector(obs Observer, target string, opts Options) *Detector {
	d := &Detector{
		target:      target,
		triggerOnce: opts.TriggerOnce,
		listeners:   make(map[int]func(bool)),
	}
	sub := obs.Observe(target, opts, d.handle)

	d.mu.Lock()
	if d.frozen {
		// Frozen during the initial delivery; the subscription is not needed.
		d.mu.Unlock()
		sub.Cancel()
		return d
	}
	d.sub = sub
	d.mu.Unlock()
	return d
}

// Target returns the observed target id.
func (d *Detector) Target() string { return d.target }

// IsIntersecting reports the live visibility (frozen in trigger-once mode).
func (d *Detector) IsIntersecting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.intersecting
}

// HasIntersected reports whether the target was ever visible. Never resets.
func (d *Detector) HasIntersected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.has
}

// Subscribe registers fn for visibility changes. The returned function
// removes it.
func (d *Detector) Subscribe(fn func(intersecting bool)) (cancel func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// Close stops observing. Flags keep their last values.
func (d *Detector) Close() {
	d.mu.Lock()
	sub := d.sub
	d.sub = nil
	d.frozen = true
	d.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (d *Detector) handle(e Entry) {
	d.mu.Lock()
	if d.frozen {
		d.mu.Unlock()
		return
	}
	changed := d.intersecting != e.IsIntersecting
	d.intersecting = e.IsIntersecting
	if e.IsIntersecting {
		d.has = true
	}

	var sub Subscription
	if d.triggerOnce && e.IsIntersecting {
		d.frozen = true
		sub = d.sub
		d.sub = nil
	}

	var fns []func(bool)
	if changed {
		fns = make([]func(bool), 0, len(d.listeners))
		for _, fn := range d.listeners {
			fns = append(fns, fn)
		}
	}
	visible := d.intersecting
	d.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	for _, fn := range fns {
		fn(visible)
	}
}
