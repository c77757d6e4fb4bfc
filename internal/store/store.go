// Package store provides SQLite persistence for the media repository.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when an action targets a record that does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrLocked is returned when another process holds the database.
	ErrLocked = errors.New("store: database in use by another gallery process")
	// ErrUnsupported is returned for actions that do not apply to an item.
	ErrUnsupported = errors.New("store: action not supported for this item")
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// All methods are safe for concurrent use via the internal mutex.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	lock *flock.Flock // nil for in-memory databases
}

// Open opens (creating if needed) the database at dbPath. ":memory:" gives
// a private in-memory database. File databases take an exclusive lock on
// dbPath+".lock" and use WAL mode.
func Open(dbPath string) (*Store, error) {
	memory := dbPath == ":memory:"

	var lock *flock.Flock
	connStr := dbPath
	if memory {
		// Named shared-cache database: every pooled connection sees the
		// same data, and separate Opens stay isolated.
		connStr = fmt.Sprintf("file:gallery-%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		lock = flock.New(dbPath + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock database: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			unlock(lock)
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db, lock: lock}
	if err := s.createTables(); err != nil {
		db.Close()
		unlock(lock)
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func unlock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}

// createTables creates the required tables and indexes if they don't exist.
// An attachment with a NULL chat_id is unassigned.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		chat_id TEXT REFERENCES chats(id) ON DELETE SET NULL,
		url TEXT NOT NULL,
		storage_path TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		project_type TEXT NOT NULL DEFAULT '',
		video_url TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		storage_path TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		is_public INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_chat ON attachments(chat_id);
	CREATE INDEX IF NOT EXISTS idx_attachments_created ON attachments(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_projects_created ON projects(created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database and releases the instance lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Close()
	unlock(s.lock)
	return err
}

func newID() string { return uuid.NewString() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
