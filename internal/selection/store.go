// Package selection holds the per-session task selection state and the
// synchronizer that keeps it consistent with the URL's taskId parameter.
//
// The store is an explicit, injectable container: it is passed by reference to
// the synchronizer and the resolver rather than reached through a singleton.
// Reads go through pull accessors; only Subscribe delivers change callbacks,
// and those drive outbound UI updates, never the synchronizer itself.
package selection

import (
	"fmt"
	"sync"
)

// Selected is the currently chosen task reference.
//
// A placeholder selection carries only the id; the resolver enriches it with
// full task details in a second phase.
type Selected struct {
	ID          int    `json:"id"`
	Title       string `json:"title,omitempty"`
	Status      string `json:"status,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	Placeholder bool   `json:"placeholder"`
}

// Store is a mutex-guarded selection container.
//
// Writes bump a generation counter. Complete applies only when its generation
// still matches, so a resolution that raced with a newer navigation is
// discarded instead of clobbering the newer selection.
type Store struct {
	mu      sync.Mutex
	current *Selected
	gen     uint64

	subs   map[int]func(*Selected)
	nextID int
}

// NewStore creates an empty selection store.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(*Selected))}
}

// Current returns a copy of the current selection, or nil when absent.
func (s *Store) Current() *Selected {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Generation returns the generation of the current selection.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Set commits a selection (phase 1 when sel.Placeholder is true) and returns
// the generation assigned to it. It rejects non-positive ids.
func (s *Store) Set(sel Selected) (uint64, error) {
	if sel.ID <= 0 {
		return 0, fmt.Errorf("invalid task id: %d", sel.ID)
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.current = &sel
	snapshot := sel
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&snapshot)
	}
	return gen, nil
}

// Complete enriches the current selection with full task details (phase 2).
//
// It is a no-op returning false when the generation no longer matches or the
// id differs from the current selection: the navigation that requested this
// resolution has already been superseded. Applying retires the generation,
// so a second resolution carrying the same token cannot apply again.
func (s *Store) Complete(gen uint64, full Selected) bool {
	s.mu.Lock()
	if s.gen != gen || s.current == nil || s.current.ID != full.ID {
		s.mu.Unlock()
		return false
	}
	s.gen++
	full.Placeholder = false
	s.current = &full
	snapshot := full
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&snapshot)
	}
	return true
}

// Clear makes the selection absent. Idempotent: clearing an already-absent
// selection notifies no subscribers.
func (s *Store) Clear() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.current = nil
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

// Subscribe registers a callback invoked after every selection change with a
// copy of the new selection (nil when cleared). The returned func removes the
// subscription.
func (s *Store) Subscribe(fn func(*Selected)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// subscribers snapshots the callback set. Caller must hold s.mu.
func (s *Store) subscribers() []func(*Selected) {
	out := make([]func(*Selected), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
