// Package session holds the client's view of the authentication state and the gate that
// resolves it once at startup.
package session

import (
	"slices"
	"sync"
)

// State is the tri-state authentication status.
type State int

const (
	Unknown State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Store is the single shared session state. Only the authentication and logout
// orchestrators call Set; everything else reads.
type Store struct {
	mu        sync.RWMutex
	state     State
	listeners []func(State)
}

// NewStore returns a store in the Unknown state.
func NewStore() *Store {
	return &Store{}
}

// State returns the current authentication state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the state is Authenticated.
func (s *Store) IsAuthenticated() bool {
	return s.State() == Authenticated
}

// Set updates the state and notifies listeners when it changed.
func (s *Store) Set(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if prev == state {
		return
	}
	for _, fn := range listeners {
		fn(state)
	}
}

// OnChange registers fn to be called after every state change.
func (s *Store) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
