// Package collection implements a linear-scan record collection: an ordered,
// mutable sequence of schemaless records searched by full scan, persisted as
// a single JSON array.
//
// Positions returned by Find, Combine and Exclude are only valid until the
// next Include or Exclude.
package collection

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stevemurr/drapid/metrics"
	"github.com/stevemurr/drapid/record"
	"github.com/stevemurr/drapid/store"
)

const metricsName = "collection"

// ErrNoPrimaryKey is returned by Combine when the collection was built
// without a primary key.
var ErrNoPrimaryKey = fmt.Errorf("%w: not possible to combine without a primary key", store.ErrConfiguration)

// Collection is an ordered sequence of records. Duplicates are allowed and
// insertion order is preserved. Safe for concurrent use, though sequences of
// calls are not atomic.
type Collection struct {
	mu      sync.RWMutex
	key     string
	records []record.Record
	backend store.Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a collection and, when a path or store is configured, loads
// the existing snapshot. A missing or malformed snapshot leaves the
// collection empty and is only logged.
func New(cfg Config) (*Collection, error) {
	c := &Collection{
		key:     cfg.Key,
		records: []record.Record{},
		backend: cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.backend == nil && cfg.Path != "" {
		b, err := store.Open(cfg.Backend, cfg.Path)
		if err != nil {
			return nil, err
		}
		c.backend = b
	}
	if c.backend != nil {
		c.Hydrate()
	}
	return c, nil
}

// PrimaryKey returns the configured primary-key field, or "".
func (c *Collection) PrimaryKey() string {
	return c.key
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Hydrate replaces the in-memory records with the persisted snapshot. On any
// status other than StatusLoaded the records are left untouched; the status
// lets the caller decide whether that is acceptable.
func (c *Collection) Hydrate() (store.LoadStatus, error) {
	var loaded []record.Record
	status, err := store.Hydrate(c.backend, &loaded)

	log := c.logger.With("location", location(c.backend), "status", status.String())
	switch status {
	case store.StatusLoaded:
		if loaded == nil {
			loaded = []record.Record{}
		}
		c.mu.Lock()
		c.records = loaded
		c.mu.Unlock()
		log.Debug("collection loaded", "records", len(loaded))
		c.metrics.Records(metricsName, len(loaded))
	case store.StatusNotFound:
		log.Debug("no collection snapshot, starting empty")
	default:
		log.Warn("collection snapshot unusable, starting empty", "error", err)
	}
	return status, err
}

// Include appends r and returns its position.
func (c *Collection) Include(r record.Record) int {
	c.mu.Lock()
	c.records = append(c.records, r)
	pos := len(c.records) - 1
	c.mu.Unlock()

	c.metrics.Op(metricsName, "include", nil)
	c.metrics.Records(metricsName, pos+1)
	return pos
}

// Find returns, in order, the position of every record whose field key
// equals value. Each record contributes at most one position.
func (c *Collection) Find(key string, value any) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.find(key, value)
}

func (c *Collection) find(key string, value any) []int {
	positions := []int{}
	for i, r := range c.records {
		if v, ok := r[key]; ok && record.Equal(v, value) {
			positions = append(positions, i)
		}
	}
	return positions
}

// Recover returns copies of the records whose field key equals value.
// Positions and records are read under one lock, so the result cannot be
// stale.
func (c *Collection) Recover(key string, value any) []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	positions := c.find(key, value)
	out := make([]record.Record, 0, len(positions))
	for _, i := range positions {
		out = append(out, record.Clone(c.records[i]))
	}
	return out
}

// RecoverAll returns copies of every record in current order. Mutating the
// result does not affect the collection.
func (c *Collection) RecoverAll() []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]record.Record, len(c.records))
	for i, r := range c.records {
		out[i] = record.Clone(r)
	}
	return out
}

// Combine shallow-merges patch into every record whose primary-key field
// equals value and returns their positions.
func (c *Collection) Combine(value any, patch record.Record) ([]int, error) {
	if c.key == "" {
		c.metrics.Op(metricsName, "combine", ErrNoPrimaryKey)
		return nil, ErrNoPrimaryKey
	}
	c.mu.Lock()
	positions := c.find(c.key, value)
	for _, i := range positions {
		record.Merge(c.records[i], patch)
	}
	c.mu.Unlock()

	c.metrics.Op(metricsName, "combine", nil)
	return positions, nil
}

// Exclude removes every record whose field key equals value and returns the
// positions they held before removal. The survivors keep their relative
// order.
func (c *Collection) Exclude(key string, value any) []int {
	c.mu.Lock()
	positions := c.find(key, value)
	if len(positions) > 0 {
		kept := c.records[:0]
		next := 0
		for i, r := range c.records {
			if next < len(positions) && positions[next] == i {
				next++
				continue
			}
			kept = append(kept, r)
		}
		for i := len(kept); i < len(c.records); i++ {
			c.records[i] = nil
		}
		c.records = kept
	}
	n := len(c.records)
	c.mu.Unlock()

	c.metrics.Op(metricsName, "exclude", nil)
	c.metrics.Records(metricsName, n)
	return positions
}

// Persist writes every record to the configured location, replacing the
// previous snapshot.
func (c *Collection) Persist() error {
	c.mu.RLock()
	err := store.Save(c.backend, c.records)
	c.mu.RUnlock()
	c.observePersist(err)
	return err
}

// PersistAsync snapshots the records before returning and writes them in
// the background. The channel yields exactly one value.
func (c *Collection) PersistAsync() <-chan error {
	c.mu.RLock()
	pending := store.SaveAsync(c.backend, c.records)
	c.mu.RUnlock()

	done := make(chan error, 1)
	go func() {
		err := <-pending
		c.observePersist(err)
		done <- err
	}()
	return done
}

func (c *Collection) observePersist(err error) {
	c.metrics.Op(metricsName, "persist", err)
	if err != nil && !errors.Is(err, store.ErrNoPath) {
		c.logger.Error("collection persist failed", "location", location(c.backend), "error", err)
	}
}

func location(b store.Backend) string {
	if b == nil {
		return ""
	}
	return b.Location()
}
