package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SqliteStore keeps the snapshot as a single row in a SQLite database file.
//
// Tables:
//
//	snapshot(id, data, updated_at)  id is always 1
type SqliteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, dbPath, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init %s: %v", ErrIO, dbPath, err)
	}
	return &SqliteStore{db: db, path: dbPath}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Location() string {
	return s.path
}

func (s *SqliteStore) Read() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var data []byte
	err := s.db.QueryRow("SELECT data FROM snapshot WHERE id = 1").Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, s.path, err)
	}
	return data, nil
}

func (s *SqliteStore) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO snapshot (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.path, err)
	}
	return nil
}
