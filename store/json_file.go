package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Shared codecs; EncodeAll and DecodeAll are safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// JsonFileStore keeps the snapshot as a single JSON document on disk. When
// the path ends in ".zst" the document is zstd-compressed.
//
// Writes go to a temp file in the same directory and are renamed over the
// target, so a reader never sees a half-written snapshot.
type JsonFileStore struct {
	mu       sync.RWMutex
	path     string
	compress bool
}

func NewJsonFileStore(path string) *JsonFileStore {
	return &JsonFileStore{
		path:     path,
		compress: strings.HasSuffix(path, ".zst"),
	}
}

func (s *JsonFileStore) Location() string {
	return s.path
}

func (s *JsonFileStore) Read() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, s.path, err)
	}
	if !s.compress {
		return data, nil
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, s.path, err)
	}
	return out, nil
}

func (s *JsonFileStore) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compress {
		payload = zstdEncoder.EncodeAll(payload, nil)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.path, err)
	}
	return nil
}
