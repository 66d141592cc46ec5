// Package gcs persists watcher state as a single object in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/gp-agenda-watcher/internal/state"
)

// Config captures the object that holds the state JSON.
type Config struct {
	Bucket string
	Object string
}

// Store reads and writes the state object.
type Store struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed state store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		object: strings.TrimPrefix(cfg.Object, "/"),
	}, nil
}

// URI returns the gs:// location of the state object.
func (s *Store) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Load downloads the state object. A missing object is the zero state.
func (s *Store) Load(ctx context.Context) (state.State, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return state.State{}, nil
	}
	if err != nil {
		return state.State{}, fmt.Errorf("open %s: %w", s.URI(), err)
	}
	defer r.Close() //nolint:errcheck // read-only handle

	data, err := io.ReadAll(r)
	if err != nil {
		return state.State{}, fmt.Errorf("read %s: %w", s.URI(), err)
	}
	st, err := state.Decode(data)
	if err != nil {
		return state.State{}, fmt.Errorf("%s: %w", s.URI(), err)
	}
	return st, nil
}

// Save uploads the encoded state, replacing the previous generation.
func (s *Store) Save(ctx context.Context, st state.State) error {
	data, err := state.Encode(st)
	if err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write %s: %w (close writer: %v)", s.URI(), err, closeErr)
		}
		return fmt.Errorf("write %s: %w", s.URI(), err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", s.URI(), err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}
