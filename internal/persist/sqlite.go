package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/storymap/internal/linkage"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultSessionKey is the row key used when none is configured.
const DefaultSessionKey = "default"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqliteHooks struct {
	exec func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
}

// SQLiteStore implements linkage.Persister with one row per session key in
// a SQLite database.
type SQLiteStore struct {
	db    *sql.DB
	key   string
	hooks sqliteHooks
}

// NewSQLiteStore opens (creating if needed) the database at path, applies
// pragmas and runs migrations.
func NewSQLiteStore(path, key string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	if key == "" {
		key = DefaultSessionKey
	}
	s := &SQLiteStore{db: db, key: key}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS session_state (
			key        TEXT PRIMARY KEY,
			blob       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) execHook(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, s.db, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

// Read loads the session row. A missing row is not an error.
func (s *SQLiteStore) Read(ctx context.Context) (*linkage.State, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		"SELECT blob FROM session_state WHERE key = ?", s.key,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: read session: %w", err)
	}
	return Decode([]byte(blob))
}

// Write upserts the session row in a single statement.
func (s *SQLiteStore) Write(ctx context.Context, st *linkage.State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	_, err = s.execHook(ctx,
		`INSERT INTO session_state (key, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		s.key, string(data), timeNow().UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return fmt.Errorf("sqlite: write session: %w", err)
	}
	return nil
}

// UpdatedAt returns when the session row was last written, or "" when the
// row does not exist.
func (s *SQLiteStore) UpdatedAt(ctx context.Context) (string, error) {
	var ts string
	err := s.db.QueryRowContext(ctx,
		"SELECT updated_at FROM session_state WHERE key = ?", s.key,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: read updated_at: %w", err)
	}
	return ts, nil
}
