package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gopad/internal/logging"
)

// LocalStore keeps editor state and session transcripts in SQLite.
//
//	kv              independently keyed values (buffer text, preview flag)
//	session_history archived transcript entries per session
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
// ":memory:" opens a private in-memory database.
func NewLocalStore(path string) (*LocalStore, error) {
	inMemory := path == ":memory:"
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &LocalStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("opened store at %s", path)
	return store, nil
}

// initialize creates the required tables and migrates older databases.
func (s *LocalStore) initialize() error {
	kvTable := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	sessionTable := `
	CREATE TABLE IF NOT EXISTS session_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		entry_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		ord INTEGER NOT NULL DEFAULT 0,
		has_order INTEGER NOT NULL DEFAULT 0,
		text TEXT,
		result_kind TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, entry_id)
	);
	CREATE INDEX IF NOT EXISTS idx_session ON session_history(session_id);
	`

	for _, table := range []string{kvTable, sessionTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return RunMigrations(s.db)
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *LocalStore) Path() string { return s.dbPath }

// Get returns the value stored under key.
func (s *LocalStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to read key %s: %v", key, err)
		return "", false, err
	}
	return value, true, nil
}

// Put overwrites the value under key in a single statement, so readers see
// either the old value or the new one.
func (s *LocalStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to write key %s: %v", key, err)
		return err
	}
	logging.StoreDebug("kv put %s (%d bytes)", key, len(value))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *LocalStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to delete key %s: %v", key, err)
		return err
	}
	return nil
}

// Keys lists stored keys in order.
func (s *LocalStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
