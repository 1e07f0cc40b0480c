// Package viewstate holds the client-only UI state shared across pages: the
// sidebar flag and the currently selected project.
package viewstate

import "sync"

// State is a snapshot of the store.
type State struct {
	SidebarOpen bool   // sidebar expanded
	ProjectID   string // selected project (empty if none)
}

// Store is safe for concurrent use. The zero value is not ready; use New.
type Store struct {
	mu    sync.RWMutex
	state State
}

// New returns a store with the sidebar open and no project selected.
func New() *Store {
	return &Store{state: initial()}
}

func initial() State {
	return State{SidebarOpen: true}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SidebarOpen reports whether the sidebar is expanded.
func (s *Store) SidebarOpen() bool {
	return s.Snapshot().SidebarOpen
}

// ProjectID returns the selected project.
func (s *Store) ProjectID() string {
	return s.Snapshot().ProjectID
}

// ToggleSidebar flips the sidebar flag and returns the new value.
func (s *Store) ToggleSidebar() bool {
	var open bool
	s.update(func(st *State) {
		st.SidebarOpen = !st.SidebarOpen
		open = st.SidebarOpen
	})
	return open
}

// SetProject selects a project. Selecting the empty id resets the store.
func (s *Store) SetProject(id string) {
	if id == "" {
		s.Reset()
		return
	}
	s.update(func(st *State) { st.ProjectID = id })
}

// Reset restores the initial state.
func (s *Store) Reset() {
	s.update(func(st *State) { *st = initial() })
}

func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}
