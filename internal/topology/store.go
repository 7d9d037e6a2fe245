package topology

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend persists the state document. Update runs fn inside one exclusive
// load-mutate-persist cycle; when fn returns an error nothing is written.
type Backend interface {
	Update(ctx context.Context, fn func(*State) error) error
	View(ctx context.Context, fn func(*State) error) error
	Close() error
}

// Backend kinds accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store owns the persisted topology. All records are reached by name through
// the State handed to Update and View callbacks.
type Store struct {
	backend Backend
}

// NewStore wraps an already opened backend.
func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

// Open opens the backend of the given kind at path.
func Open(kind, path string, lockTimeout time.Duration) (*Store, error) {
	switch strings.ToLower(kind) {
	case "", BackendJSON:
		return NewStore(NewFileBackend(path, lockTimeout)), nil
	case BackendSQLite:
		b, err := OpenSQLiteBackend(path, lockTimeout)
		if err != nil {
			return nil, err
		}
		return NewStore(b), nil
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", ErrInvalidInput, kind)
	}
}

// Update runs fn under the exclusive state lock and persists the result if
// fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(*State) error) error {
	return s.backend.Update(ctx, fn)
}

// View runs fn against a freshly loaded state without persisting.
func (s *Store) View(ctx context.Context, fn func(*State) error) error {
	return s.backend.View(ctx, fn)
}

// Snapshot returns a detached copy of the current state.
func (s *Store) Snapshot(ctx context.Context) (*State, error) {
	var out *State
	err := s.backend.View(ctx, func(st *State) error {
		out = st
		return nil
	})
	return out, err
}

func (s *Store) Close() error {
	return s.backend.Close()
}
