package job

import (
	"sort"
	"sync"
	"time"
)

// Registry is the single source of truth for job state. The outer lock guards
// only the map; each entry carries its own mutex, so operations on different
// jobs never block each other.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu        sync.Mutex
	rec       Record
	terminate func()
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Create registers a new record in StateStarting and returns a copy.
func (r *Registry) Create(id, url string) Record {
	rec := Record{
		ID:        id,
		URL:       url,
		State:     StateStarting,
		Message:   "Initializing download...",
		StartedAt: time.Now(),
	}
	r.mu.Lock()
	r.entries[id] = &entry{rec: rec}
	r.mu.Unlock()
	return rec
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	return e, ok
}

// Get returns a copy of the record, never the live instance.
func (r *Registry) Get(id string) (Record, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return Record{}, false
	}
	e.mu.Lock()
	rec := e.rec.snapshot()
	e.mu.Unlock()
	return rec, true
}

// All returns copies of every record, oldest first. The map lock is released
// before the per-entry locks are taken so workers are not stalled behind a
// full listing.
func (r *Registry) All() []Record {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.rec.snapshot())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// MutateIfNotTerminal applies fn to the live record unless it has already
// reached a terminal state. All state changes funnel through here; a
// transition into a terminal state stamps CompletedAt exactly once.
func (r *Registry) MutateIfNotTerminal(id string, fn func(*Record)) bool {
	e, ok := r.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.State.Terminal() {
		return false
	}
	fn(&e.rec)
	if e.rec.State.Terminal() && e.rec.CompletedAt == nil {
		now := time.Now()
		e.rec.CompletedAt = &now
	}
	return true
}

// SetTerminator stores the control handle used to stop the job's process.
// The raw process object never enters the registry.
func (r *Registry) SetTerminator(id string, terminate func()) {
	e, ok := r.lookup(id)
	if !ok {
		return
	}
	e.mu.Lock()
	e.terminate = terminate
	e.mu.Unlock()
}

// Terminator returns the stored control handle, or nil when the job has no
// process yet.
func (r *Registry) Terminator(id string) func() {
	e, ok := r.lookup(id)
	if !ok {
		return nil
	}
	e.mu.Lock()
	terminate := e.terminate
	e.mu.Unlock()
	return terminate
}
