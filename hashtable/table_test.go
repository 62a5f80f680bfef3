package hashtable_test

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/drapid/hashtable"
	"github.com/stevemurr/drapid/record"
	"github.com/stevemurr/drapid/store"
)

func newTable(t *testing.T, cfg hashtable.Config) *hashtable.Table {
	t.Helper()
	if cfg.Key == "" {
		cfg.Key = "name"
	}
	tbl, err := hashtable.New(cfg)
	require.NoError(t, err)
	return tbl
}

// collidingNames returns two distinct names that address the same slot.
func collidingNames(t *testing.T, tbl *hashtable.Table) (string, string) {
	t.Helper()
	seen := map[int]string{}
	for i := 0; i < 10*tbl.Capacity()+1; i++ {
		name := fmt.Sprintf("hero-%d", i)
		idx := tbl.GenerateIndex(name)
		if prev, ok := seen[idx]; ok {
			return prev, name
		}
		seen[idx] = name
	}
	t.Fatal("no collision found")
	return "", ""
}

func TestNewRequiresPrimaryKey(t *testing.T) {
	_, err := hashtable.New(hashtable.Config{})
	assert.ErrorIs(t, err, hashtable.ErrNoPrimaryKey)
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestNewDefaults(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	assert.Equal(t, hashtable.DefaultSize, tbl.Capacity())
	assert.Equal(t, 0, tbl.Count())
	assert.Equal(t, "name", tbl.PrimaryKey())

	cfg := hashtable.DefaultConfig()
	assert.Equal(t, 131072, cfg.Size)
	assert.Equal(t, "blake2b", cfg.Digest)
}

func TestNewUnknownDigest(t *testing.T) {
	_, err := hashtable.New(hashtable.Config{Key: "name", Digest: "md4"})
	assert.ErrorIs(t, err, store.ErrConfiguration)
}

func TestGenerateIndexIsPure(t *testing.T) {
	for _, digest := range []string{"blake2b", "murmur3"} {
		t.Run(digest, func(t *testing.T) {
			tbl := newTable(t, hashtable.Config{Size: 1024, Digest: digest})
			for _, v := range []any{"Rita", "Phil", 42, true, nil} {
				idx := tbl.GenerateIndex(v)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, tbl.Capacity())
				for i := 0; i < 5; i++ {
					assert.Equal(t, idx, tbl.GenerateIndex(v))
				}
			}
			assert.Equal(t, tbl.GenerateIndex(7), tbl.GenerateIndex(float64(7)))
		})
	}
}

func TestIncludeAndRecover(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})

	idx, err := tbl.Include(record.Record{"name": "Rita", "job": "mage"})
	require.NoError(t, err)
	assert.Equal(t, tbl.Find("Rita"), idx)
	assert.Equal(t, 1, tbl.Count())

	got, ok := tbl.Recover("Rita")
	require.True(t, ok)
	assert.Equal(t, record.Record{"name": "Rita", "job": "mage"}, got)

	got["job"] = "mutated"
	again, _ := tbl.Recover("Rita")
	assert.Equal(t, "mage", again["job"])

	_, ok = tbl.Recover("Nobody")
	assert.False(t, ok)
}

func TestIncludeMissingKey(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	_, err := tbl.Include(record.Record{"job": "mage"})
	assert.ErrorIs(t, err, hashtable.ErrMissingKeyValue)
	assert.Equal(t, 0, tbl.Count())
}

func TestIncludeCollision(t *testing.T) {
	tbl := newTable(t, hashtable.Config{Size: 8})
	first, second := collidingNames(t, tbl)

	idx, err := tbl.Include(record.Record{"name": first, "order": "first"})
	require.NoError(t, err)

	got, err := tbl.Include(record.Record{"name": second, "order": "second"})
	assert.ErrorIs(t, err, hashtable.ErrSlotOccupied)
	assert.ErrorIs(t, err, hashtable.ErrCollision)
	assert.Equal(t, idx, got)

	occupant, ok := tbl.Recover(first)
	require.True(t, ok)
	assert.Equal(t, "first", occupant["order"])
	assert.Equal(t, 1, tbl.Count())
}

func TestIncludeSameKeyTwice(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	_, err := tbl.Include(record.Record{"name": "Rita"})
	require.NoError(t, err)
	_, err = tbl.Include(record.Record{"name": "Rita", "job": "cleric"})
	assert.ErrorIs(t, err, hashtable.ErrSlotOccupied)
}

func TestCombine(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	_, err := tbl.Include(record.Record{"name": "Rita", "job": "mage"})
	require.NoError(t, err)

	idx, err := tbl.Combine("Rita", record.Record{"race": "human"})
	require.NoError(t, err)
	assert.Equal(t, tbl.Find("Rita"), idx)

	got, _ := tbl.Recover("Rita")
	assert.Equal(t, record.Record{"name": "Rita", "job": "mage", "race": "human"}, got)
}

func TestCombineEmptySlot(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	idx, err := tbl.Combine("Rita", record.Record{"race": "human"})
	assert.ErrorIs(t, err, hashtable.ErrSlotEmpty)
	assert.Equal(t, tbl.Find("Rita"), idx)

	_, ok := tbl.Recover("Rita")
	assert.False(t, ok)
}

func TestExcludeIsIdempotent(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	_, err := tbl.Include(record.Record{"name": "Rita"})
	require.NoError(t, err)

	idx := tbl.Exclude("Rita")
	assert.Equal(t, tbl.Find("Rita"), idx)
	assert.Equal(t, 0, tbl.Count())
	_, ok := tbl.Recover("Rita")
	assert.False(t, ok)

	assert.Equal(t, idx, tbl.Exclude("Rita"))
	assert.Equal(t, 0, tbl.Count())

	_, err = tbl.Include(record.Record{"name": "Rita"})
	assert.NoError(t, err)
}

func TestPersistWithoutPath(t *testing.T) {
	tbl := newTable(t, hashtable.Config{Size: 4})
	assert.ErrorIs(t, tbl.Persist(), store.ErrNoPath)
	assert.ErrorIs(t, <-tbl.PersistAsync(), store.ErrNoPath)
}

func TestPersistFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	tbl := newTable(t, hashtable.Config{Path: path, Size: 16})
	idx, err := tbl.Include(record.Record{"name": "Rita"})
	require.NoError(t, err)
	require.NoError(t, <-tbl.PersistAsync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var slots []map[string]any
	require.NoError(t, json.Unmarshal(raw, &slots))
	require.Len(t, slots, 16)
	for i, s := range slots {
		if i == idx {
			assert.Equal(t, "Rita", s["name"])
		} else {
			assert.Nil(t, s, "slot %d", i)
		}
	}
}

func TestHydrateRoundTrip(t *testing.T) {
	for _, name := range []string{"table.json", "table.json.zst", "table.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			tbl := newTable(t, hashtable.Config{Path: path, Size: 64, Digest: "murmur3"})
			for _, n := range []string{"Rita", "Phil"} {
				_, err := tbl.Include(record.Record{"name": n, "job": "mage"})
				require.NoError(t, err)
			}
			require.NoError(t, tbl.Persist())

			fresh := newTable(t, hashtable.Config{Path: path, Size: 64, Digest: "murmur3"})
			assert.Equal(t, 0, fresh.Count())
			status, err := fresh.Hydrate()
			require.NoError(t, err)
			assert.Equal(t, store.StatusLoaded, status)
			assert.Equal(t, 2, fresh.Count())
			got, ok := fresh.Recover("Phil")
			require.True(t, ok)
			assert.Equal(t, "mage", got["job"])
		})
	}
}

func TestHydrateRejectsMismatchedSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	tbl := newTable(t, hashtable.Config{Path: path, Size: 64})
	_, err := tbl.Include(record.Record{"name": "Rita"})
	require.NoError(t, err)
	require.NoError(t, tbl.Persist())

	t.Run("different size", func(t *testing.T) {
		other := newTable(t, hashtable.Config{Path: path, Size: 32})
		status, err := other.Hydrate()
		assert.ErrorIs(t, err, store.ErrMalformed)
		assert.Equal(t, store.StatusMalformed, status)
		assert.Equal(t, 0, other.Count())
	})

	t.Run("different digest", func(t *testing.T) {
		other := newTable(t, hashtable.Config{Path: path, Size: 64, Digest: "murmur3"})
		if other.GenerateIndex("Rita") == tbl.GenerateIndex("Rita") {
			t.Skip("digests agree on this key")
		}
		status, err := other.Hydrate()
		assert.ErrorIs(t, err, store.ErrMalformed)
		assert.Equal(t, store.StatusMalformed, status)
	})
}

func TestHydrateMissing(t *testing.T) {
	tbl := newTable(t, hashtable.Config{Path: filepath.Join(t.TempDir(), "none.json"), Size: 4})
	status, err := tbl.Hydrate()
	require.NoError(t, err)
	assert.Equal(t, store.StatusNotFound, status)
}

func TestDigestByName(t *testing.T) {
	d, err := hashtable.DigestByName("")
	require.NoError(t, err)
	assert.Equal(t, "blake2b", d.Name())

	d, err = hashtable.DigestByName("murmur3")
	require.NoError(t, err)
	assert.Equal(t, "murmur3", d.Name())
	assert.NotEqual(t, d.Sum64([]byte("Rita")), hashtable.Blake2b{}.Sum64([]byte("Rita")))
}

func TestIncludeDistinctKeyTypes(t *testing.T) {
	for _, digest := range []string{"blake2b", "murmur3"} {
		t.Run(digest, func(t *testing.T) {
			tbl := newTable(t, hashtable.Config{Key: "id", Digest: digest})
			pairs := [][2]any{{7, "7"}, {nil, "null"}, {true, "true"}}
			for _, p := range pairs {
				assert.NotEqual(t, tbl.GenerateIndex(p[0]), tbl.GenerateIndex(p[1]), "%#v vs %#v", p[0], p[1])
				for _, v := range p {
					_, err := tbl.Include(record.Record{"id": v})
					require.NoError(t, err, "%#v", v)
				}
			}
			assert.Equal(t, 6, tbl.Count())

			got, ok := tbl.Recover("7")
			require.True(t, ok)
			assert.Equal(t, "7", got["id"])
		})
	}
}

func TestRecoverKeepsValues(t *testing.T) {
	tbl := newTable(t, hashtable.Config{})
	_, err := tbl.Include(record.Record{"name": "Rita", "hp": math.Inf(1), "age": int64(9007199254740993)})
	require.NoError(t, err)

	got, ok := tbl.Recover("Rita")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, math.Inf(1), got["hp"])
	assert.Equal(t, int64(9007199254740993), got["age"])
}
