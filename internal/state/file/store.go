// Package file persists watcher state as a JSON file on the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
)

// Config captures the parameters for the file-backed store.
type Config struct {
	// Path is the state file location, e.g. "state.json".
	Path string `mapstructure:"path" yaml:"path"`
}

// Store reads and writes state.json.
type Store struct {
	path string
}

// New creates a file-backed store. The parent directory is created on save.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("state path is required")
	}
	info, err := os.Stat(cfg.Path)
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("state path %s is a directory", cfg.Path)
	}
	return &Store{path: filepath.Clean(cfg.Path)}, nil
}

// Path returns the file the store writes to.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state, or the zero state when the file does not exist.
func (s *Store) Load(ctx context.Context) (state.State, error) {
	if err := ctx.Err(); err != nil {
		return state.State{}, fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- the path comes from operator configuration.
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return state.State{}, nil
	}
	if err != nil {
		return state.State{}, fmt.Errorf("read state file %s: %w", s.path, err)
	}
	st, err := state.Decode(data)
	if err != nil {
		return state.State{}, fmt.Errorf("state file %s: %w", s.path, err)
	}
	return st, nil
}

// Save overwrites the state file by writing a sibling temp file and renaming it.
func (s *Store) Save(ctx context.Context, st state.State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	data, err := state.Encode(st)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file %s: %w", s.path, err)
	}
	return nil
}
