package topology

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS topology_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	document TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteBackend keeps the state document in an embedded SQLite database.
// Each cycle runs in a BEGIN IMMEDIATE transaction, which takes the database
// write lock up front; contention past busy_timeout surfaces as ErrLockTimeout.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLiteBackend opens (creating if needed) the database at path.
func OpenSQLiteBackend(path string, lockTimeout time.Duration) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(path, lockTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, mapBusy(fmt.Errorf("creating state schema: %w", err))
	}
	return &SQLiteBackend{db: db}, nil
}

// sqliteDSN builds a file: URI for path. The path is escaped so characters
// such as '?' and '#' stay part of the file name.
func sqliteDSN(path string, lockTimeout time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", lockTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode()
}

func (b *SQLiteBackend) Update(ctx context.Context, fn func(*State) error) error {
	return b.cycle(ctx, "BEGIN IMMEDIATE", fn, true)
}

func (b *SQLiteBackend) View(ctx context.Context, fn func(*State) error) error {
	return b.cycle(ctx, "BEGIN", fn, false)
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) cycle(ctx context.Context, begin string, fn func(*State) error, write bool) (err error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("state database connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, begin); err != nil {
		return mapBusy(fmt.Errorf("locking state: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	st := NewState()
	var doc string
	switch err := conn.QueryRowContext(ctx, `SELECT document FROM topology_state WHERE id = 1`).Scan(&doc); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return mapBusy(fmt.Errorf("reading state: %w", err))
	default:
		if err := json.Unmarshal([]byte(doc), st); err != nil {
			return fmt.Errorf("parsing state: %w", err)
		}
	}
	st.normalize()

	if err := fn(st); err != nil {
		return err
	}

	if write {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO topology_state (id, document, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
			string(data), time.Now().Unix())
		if err != nil {
			return mapBusy(fmt.Errorf("writing state: %w", err))
		}
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return mapBusy(fmt.Errorf("committing state: %w", err))
	}
	committed = true
	return nil
}

// mapBusy turns SQLITE_BUSY and SQLITE_LOCKED into ErrLockTimeout.
func mapBusy(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
	}
	return err
}
