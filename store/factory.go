package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Open creates a Backend for path based on the backend name.
//
// Supported backends:
//
//	"json"   - JSON document at path, zstd-compressed when path ends in .zst
//	"sqlite" - single-row SQLite database at path
//	"memory" - in-memory (ephemeral, for testing); path is only a label
//	""       - inferred from the extension: .db, .sqlite, .sqlite3 pick
//	           sqlite, anything else json
//
// An empty path is a configuration error for every backend.
func Open(backend, path string) (Backend, error) {
	if path == "" {
		return nil, ErrNoPath
	}
	if backend == "" {
		backend = inferBackend(path)
	}
	switch backend {
	case "json":
		return NewJsonFileStore(path), nil
	case "sqlite":
		return NewSqliteStore(path)
	case "memory":
		return NewMemoryStore(path), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend: %q (supported: json, sqlite, memory)", ErrConfiguration, backend)
	}
}

func inferBackend(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return "sqlite"
	default:
		return "json"
	}
}
