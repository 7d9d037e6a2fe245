package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const lockPollInterval = 25 * time.Millisecond

// FileBackend stores the state as one JSON document. A sibling ".lock" file
// carries an flock(2) advisory lock for the whole cycle, and writes go through
// a temp file and rename so readers never observe a partial document.
type FileBackend struct {
	path        string
	lockTimeout time.Duration
}

// NewFileBackend returns a backend for the document at path.
func NewFileBackend(path string, lockTimeout time.Duration) *FileBackend {
	return &FileBackend{path: path, lockTimeout: lockTimeout}
}

func (b *FileBackend) Update(ctx context.Context, fn func(*State) error) error {
	unlock, err := b.lock(ctx, unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := b.load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return b.save(st)
}

func (b *FileBackend) View(ctx context.Context, fn func(*State) error) error {
	unlock, err := b.lock(ctx, unix.LOCK_SH)
	if err != nil {
		return err
	}
	defer unlock()

	st, err := b.load()
	if err != nil {
		return err
	}
	return fn(st)
}

func (b *FileBackend) Close() error {
	return nil
}

// lock polls a non-blocking flock until it succeeds, ctx ends or the lock
// timeout expires.
func (b *FileBackend) lock(ctx context.Context, how int) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	f, err := os.OpenFile(b.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening state lock: %w", err)
	}

	deadline := time.Now().Add(b.lockTimeout)
	for {
		err := unix.Flock(int(f.Fd()), how|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
				f.Close()
			}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("locking state: %w", err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s held by another process for %s", ErrLockTimeout, b.path, b.lockTimeout)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (b *FileBackend) load() (*State, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}
	st := NewState()
	if len(data) > 0 {
		if err := json.Unmarshal(data, st); err != nil {
			return nil, fmt.Errorf("parsing state %s: %w", b.path, err)
		}
	}
	st.normalize()
	return st, nil
}

func (b *FileBackend) save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}
