// Package playback bounds how many videos decode and play at once.
package playback

import "sync"

// DefaultCapacity is the number of concurrent playback slots.
const DefaultCapacity = 3

// Handle is the playback resource behind a claim.
type Handle interface {
	Pause()
}

// HandleFunc adapts a function to Handle.
type HandleFunc func()

// Pause calls f.
func (f HandleFunc) Pause() { f() }

// Slot is a claim on one playback resource.
type Slot struct {
	ID     string
	Handle Handle
}

// Manager is a FIFO-bounded set of playback claims. When full, registering
// evicts the oldest claim by registration order. There is no access-time
// tracking: this is not an LRU.
//
// A Manager is owned by one gallery and injected into the items that play.
// Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	capacity int
	slots    []Slot // oldest first

	// OnEvict, if set, is called after a claim is evicted. Called without
	// the lock held.
	OnEvict func(id string)
}

// NewManager creates a Manager with the given capacity.
// Capacity <= 0 uses DefaultCapacity.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{capacity: capacity, slots: make([]Slot, 0, capacity)}
}

// Capacity returns the slot bound.
func (m *Manager) Capacity() int { return m.capacity }

// Register claims a slot for id. If the set is full, the oldest claim is
// paused and removed first and its id is returned. Registering an id that
// already holds a slot replaces its handle and keeps its position.
func (m *Manager) Register(id string, h Handle) (evicted string) {
	m.mu.Lock()
	for i := range m.slots {
		if m.slots[i].ID == id {
			m.slots[i].Handle = h
			m.mu.Unlock()
			return ""
		}
	}

	var victim *Slot
	if len(m.slots) >= m.capacity {
		oldest := m.slots[0]
		victim = &oldest
		m.slots = append(m.slots[:0], m.slots[1:]...)
	}
	m.slots = append(m.slots, Slot{ID: id, Handle: h})
	onEvict := m.OnEvict
	m.mu.Unlock()

	if victim == nil {
		return ""
	}
	if victim.Handle != nil {
		victim.Handle.Pause()
	}
	if onEvict != nil {
		onEvict(victim.ID)
	}
	return victim.ID
}

// Unregister releases id's claim, if any. Other claims are untouched.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.slots {
		if m.slots[i].ID == id {
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return true
		}
	}
	return false
}

// PauseAllExcept pauses every claim except id. Claims stay registered;
// their owners unregister when they observe the pause.
func (m *Manager) PauseAllExcept(id string) {
	m.mu.Lock()
	var handles []Handle
	for _, s := range m.slots {
		if s.ID != id && s.Handle != nil {
			handles = append(handles, s.Handle)
		}
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.Pause()
	}
}

// Has reports whether id holds a slot.
func (m *Manager) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Active returns the ids holding slots, oldest first.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.slots))
	for i, s := range m.slots {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of held slots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
