// Package memory keeps watcher state in-process for tests and dry runs.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
)

// Store holds a single state value.
type Store struct {
	mu    sync.RWMutex
	st    state.State
	saves int
	err   error
}

// New returns a store seeded with st.
func New(st state.State) *Store {
	return &Store{st: clone(st)}
}

// Load returns a copy of the held state.
func (s *Store) Load(_ context.Context) (state.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return state.State{}, s.err
	}
	return clone(s.st), nil
}

// Save replaces the held state.
func (s *Store) Save(_ context.Context, st state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.st = clone(st)
	s.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// FailWith makes subsequent Load and Save calls return err.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func clone(st state.State) state.State {
	st.SeenIDs = slices.Clone(st.SeenIDs)
	return st
}
