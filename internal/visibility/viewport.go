package visibility

import "sync"

// Viewport is an Observer for a scrolling terminal view. Targets are laid
// out in content coordinates; the root is the window [offset, offset+height)
// over that content. Callbacks run synchronously on the goroutine that
// changed the layout, after internal locks are released.
type Viewport struct {
	mu      sync.Mutex
	width   float64
	height  float64
	offset  float64
	targets map[string]Rect
	subs    map[int]*observation
	nextID  int
}

type observation struct {
	id        int
	target    string
	threshold float64
	margin    Margin
	fn        func(Entry)
	known     bool // last delivered state is valid
	last      bool
}

// NewViewport creates a Viewport of the given size scrolled to the top.
func NewViewport(width, height float64) *Viewport {
	return &Viewport{
		width:   width,
		height:  height,
		targets: make(map[string]Rect),
		subs:    make(map[int]*observation),
	}
}

// Observe implements Observer. An invalid root margin falls back to none.
func (v *Viewport) Observe(target string, opts Options, fn func(Entry)) Subscription {
	margin, err := ParseMargin(opts.RootMargin)
	if err != nil {
		margin = Margin{}
	}
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	o := &observation{id: id, target: target, threshold: opts.Threshold, margin: margin, fn: fn}
	v.subs[id] = o
	deliveries := v.evaluateLocked(func(ob *observation) bool { return ob.id == id }, true)
	v.mu.Unlock()

	deliver(deliveries)
	return CancelFunc(func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
	})
}

// Offset returns the scroll offset.
func (v *Viewport) Offset() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.offset
}

// Height returns the root height.
func (v *Viewport) Height() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.height
}

// Observing returns the number of live observations.
func (v *Viewport) Observing() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// ScrollTo moves the root and reports crossings.
func (v *Viewport) ScrollTo(offset float64) {
	if offset < 0 {
		offset = 0
	}
	v.mu.Lock()
	v.offset = offset
	deliveries := v.evaluateLocked(nil, false)
	v.mu.Unlock()
	deliver(deliveries)
}

// Resize changes the root size and reports crossings.
func (v *Viewport) Resize(width, height float64) {
	v.mu.Lock()
	v.width, v.height = width, height
	deliveries := v.evaluateLocked(nil, false)
	v.mu.Unlock()
	deliver(deliveries)
}

// SetBounds places (or moves) a target and reports crossings for it.
func (v *Viewport) SetBounds(target string, r Rect) {
	v.mu.Lock()
	v.targets[target] = r
	deliveries := v.evaluateLocked(func(o *observation) bool { return o.target == target }, false)
	v.mu.Unlock()
	deliver(deliveries)
}

// Layout replaces every target's bounds at once. Targets missing from
// bounds are removed and reported as not intersecting.
func (v *Viewport) Layout(bounds map[string]Rect) {
	v.mu.Lock()
	v.targets = make(map[string]Rect, len(bounds))
	for k, r := range bounds {
		v.targets[k] = r
	}
	deliveries := v.evaluateLocked(nil, false)
	v.mu.Unlock()
	deliver(deliveries)
}

// Remove drops a target. Observers of it see it leave the viewport.
func (v *Viewport) Remove(target string) {
	v.mu.Lock()
	delete(v.targets, target)
	deliveries := v.evaluateLocked(func(o *observation) bool { return o.target == target }, false)
	v.mu.Unlock()
	deliver(deliveries)
}

type delivery struct {
	fn    func(Entry)
	entry Entry
}

func deliver(ds []delivery) {
	for _, d := range ds {
		d.fn(d.entry)
	}
}

// evaluateLocked computes entries for matching observations. Only
// observations whose state changed are delivered unless force is set.
// Caller must hold v.mu.
func (v *Viewport) evaluateLocked(match func(*observation) bool, force bool) []delivery {
	root := Rect{X: 0, Y: v.offset, W: v.width, H: v.height}
	var out []delivery
	for _, o := range v.subs {
		if match != nil && !match(o) {
			continue
		}
		entry := Entry{Target: o.target}
		if r, ok := v.targets[o.target]; ok {
			ratio, touching := Ratio(r, o.margin.Expand(root))
			entry.Ratio = ratio
			entry.IsIntersecting = touching && ratio > 0 && ratio >= o.threshold
			if touching && o.threshold == 0 {
				entry.IsIntersecting = true
			}
		}
		if !force && o.known && o.last == entry.IsIntersecting {
			continue
		}
		o.known = true
		o.last = entry.IsIntersecting
		out = append(out, delivery{fn: o.fn, entry: entry})
	}
	return out
}
