// Package state defines the persisted watcher state and the stores that hold it.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// State is the entire durable state of the watcher.
type State struct {
	SeenIDs     []int64   `json:"seen_ids"`
	Initialized bool      `json:"initialized"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// Store loads and saves watcher state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// New builds an initialized state from the current ID set.
func New(ids map[int64]struct{}, now time.Time) State {
	seen := make([]int64, 0, len(ids))
	for id := range ids {
		seen = append(seen, id)
	}
	slices.Sort(seen)
	return State{SeenIDs: seen, Initialized: true, UpdatedAt: now.UTC()}
}

// FirstRun reports whether no run has completed yet. State written before the
// initialized flag existed counts as initialized when it has seen IDs.
func (s State) FirstRun() bool {
	return !s.Initialized && len(s.SeenIDs) == 0
}

// Seen returns the seen IDs as a set.
func (s State) Seen() map[int64]struct{} {
	set := make(map[int64]struct{}, len(s.SeenIDs))
	for _, id := range s.SeenIDs {
		set[id] = struct{}{}
	}
	return set
}

// Encode renders st as indented JSON with a trailing newline.
func Encode(st State) ([]byte, error) {
	if st.SeenIDs == nil {
		st.SeenIDs = []int64{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses state JSON. Malformed or empty input is an error; callers
// decide what a missing state means.
func Decode(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}
