// Package hashtable implements a fixed-capacity, direct-addressed record
// store. Each record lives in the slot given by hashing its primary-key
// value modulo the capacity. There is no chaining or probing: a second
// record addressing an occupied slot is rejected with ErrSlotOccupied, so
// capacity should be large relative to the expected record count.
package hashtable

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

const metricsName = "hashtable"

// Table is a fixed-length slot array. A nil slot is empty. Safe for
// concurrent use.
type Table struct {
	mu      sync.RWMutex
	key     string
	slots   []record.Record
	count   int
	digest  Digest
	backend store.Backend
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an empty table. It does not load any persisted snapshot; call
// Hydrate for that.
func New(cfg Config) (*Table, error) {
	if cfg.Key == "" {
		return nil, ErrNoPrimaryKey
	}
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}
	digest, err := DigestByName(cfg.Digest)
	if err != nil {
		return nil, err
	}

	t := &Table{
		key:     cfg.Key,
		slots:   make([]record.Record, size),
		digest:  digest,
		backend: cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.backend == nil && cfg.Path != "" {
		b, err := store.Open(cfg.Backend, cfg.Path)
		if err != nil {
			return nil, err
		}
		t.backend = b
	}
	return t, nil
}

func (t *Table) PrimaryKey() string { return t.key }

// Capacity returns the fixed slot count.
func (t *Table) Capacity() int { return len(t.slots) }

// Count returns the number of occupied slots.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// GenerateIndex maps a primary-key value to its slot. Equal values always
// map to the same slot for the life of the table.
func (t *Table) GenerateIndex(value any) int {
	b, err := record.KeyBytes(value)
	if err != nil {
		b = []byte(fmt.Sprintf("%T:%v", value, value))
	}
	return int(t.digest.Sum64(b) % uint64(len(t.slots)))
}

// Include stores r in the slot addressed by its primary-key value and
// returns that slot. If the slot is occupied, r is not stored and the error
// wraps ErrSlotOccupied; the returned index is still the contested slot.
func (t *Table) Include(r record.Record) (int, error) {
	value, ok := r[t.key]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrMissingKeyValue, t.key)
		t.metrics.Op(metricsName, "include", err)
		return -1, err
	}
	idx := t.GenerateIndex(value)

	t.mu.Lock()
	if t.slots[idx] != nil {
		t.mu.Unlock()
		err := fmt.Errorf("%w: slot %d", ErrSlotOccupied, idx)
		t.metrics.Op(metricsName, "include", err)
		t.metrics.Collision()
		t.logger.Warn("slot collision", "slot", idx, "key", value)
		return idx, err
	}
	t.slots[idx] = r
	t.count++
	n := t.count
	t.mu.Unlock()

	t.metrics.Op(metricsName, "include", nil)
	t.metrics.Records(metricsName, n)
	return idx, nil
}

// Find returns the slot value addresses. It does not check that the slot is
// occupied, nor that its occupant's key is value.
func (t *Table) Find(value any) int {
	return t.GenerateIndex(value)
}

// Recover returns a copy of the record in the slot value addresses, and
// false if the slot is empty.
func (t *Table) Recover(value any) (record.Record, bool) {
	idx := t.GenerateIndex(value)
	t.mu.RLock()
	defer t.mu.RUnlock()
	r := t.slots[idx]
	if r == nil {
		return nil, false
	}
	return record.Clone(r), true
}

// Combine shallow-merges patch into the record in the slot value addresses
// and returns the slot. An empty slot yields ErrSlotEmpty.
func (t *Table) Combine(value any, patch record.Record) (int, error) {
	idx := t.GenerateIndex(value)

	t.mu.Lock()
	r := t.slots[idx]
	if r == nil {
		t.mu.Unlock()
		err := fmt.Errorf("%w: slot %d", ErrSlotEmpty, idx)
		t.metrics.Op(metricsName, "combine", err)
		return idx, err
	}
	record.Merge(r, patch)
	t.mu.Unlock()

	t.metrics.Op(metricsName, "combine", nil)
	return idx, nil
}

// Exclude empties the slot value addresses and returns it. Excluding an
// empty slot is a no-op.
func (t *Table) Exclude(value any) int {
	idx := t.GenerateIndex(value)

	t.mu.Lock()
	if t.slots[idx] != nil {
		t.slots[idx] = nil
		t.count--
	}
	n := t.count
	t.mu.Unlock()

	t.metrics.Op(metricsName, "exclude", nil)
	t.metrics.Records(metricsName, n)
	return idx
}

// Persist writes the whole slot array, empty slots as null, replacing the
// previous snapshot.
func (t *Table) Persist() error {
	t.mu.RLock()
	err := store.Save(t.backend, t.slots)
	t.mu.RUnlock()
	t.observePersist(err)
	return err
}

// PersistAsync snapshots the slot array before returning and writes it in
// the background. The channel yields exactly one value.
func (t *Table) PersistAsync() <-chan error {
	t.mu.RLock()
	pending := store.SaveAsync(t.backend, t.slots)
	t.mu.RUnlock()

	done := make(chan error, 1)
	go func() {
		err := <-pending
		t.observePersist(err)
		done <- err
	}()
	return done
}

func (t *Table) observePersist(err error) {
	t.metrics.Op(metricsName, "persist", err)
	if err != nil && !errors.Is(err, store.ErrNoPath) {
		t.logger.Error("hashtable persist failed", "location", location(t.backend), "error", err)
	} else if err == nil {
		t.logger.Debug("hashtable persisted", "location", location(t.backend))
	}
}

// Hydrate replaces the slot array with the persisted snapshot. The snapshot
// must have exactly Capacity slots and every occupant must sit in the slot
// its key addresses under this table's digest; otherwise it is reported as
// StatusMalformed and the table is left untouched.
func (t *Table) Hydrate() (store.LoadStatus, error) {
	var loaded []record.Record
	status, err := store.Hydrate(t.backend, &loaded)
	if status == store.StatusLoaded {
		var count int
		count, err = t.validate(loaded)
		if err != nil {
			status = store.StatusMalformed
		} else {
			t.mu.Lock()
			t.slots = loaded
			t.count = count
			t.mu.Unlock()
			t.metrics.Records(metricsName, count)
		}
	}

	log := t.logger.With("location", location(t.backend), "status", status.String())
	switch status {
	case store.StatusLoaded:
		log.Debug("hashtable loaded", "records", t.Count())
	case store.StatusNotFound:
		log.Debug("no hashtable snapshot, starting empty")
	default:
		log.Warn("hashtable snapshot unusable, starting empty", "error", err)
	}
	return status, err
}

func (t *Table) validate(slots []record.Record) (int, error) {
	if len(slots) != len(t.slots) {
		return 0, fmt.Errorf("%w: %d slots, table has %d", store.ErrMalformed, len(slots), len(t.slots))
	}
	count := 0
	for i, r := range slots {
		if r == nil {
			continue
		}
		value, ok := r[t.key]
		if !ok {
			return 0, fmt.Errorf("%w: slot %d has no %q field", store.ErrMalformed, i, t.key)
		}
		if idx := t.GenerateIndex(value); idx != i {
			return 0, fmt.Errorf("%w: slot %d holds a record addressed to slot %d", store.ErrMalformed, i, idx)
		}
		count++
	}
	return count, nil
}

func location(b store.Backend) string {
	if b == nil {
		return ""
	}
	return b.Location()
}
