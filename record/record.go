// Package record defines the schemaless document model shared by the
// collection and hashtable stores.
package record

import (
	"encoding/json"
	"maps"
	"reflect"

	"github.com/mitchellh/copystructure"
)

// Record maps field names to JSON-compatible values: string, number, bool,
// nil, nested maps and slices of those.
type Record = map[string]any

// Clone returns a deep copy of a record. Nested maps and slices are copied;
// leaf values keep their Go type and value.
func Clone(src Record) Record {
	if src == nil {
		return nil
	}
	dst, err := copystructure.Copy(src)
	if err != nil {
		// Only reachable for values copystructure cannot walk; a top-level
		// copy still keeps the record itself.
		return maps.Clone(src)
	}
	return dst.(Record)
}

// Merge assigns every field of patch onto dst. Fields of dst that patch
// does not name are left alone.
func Merge(dst, patch Record) {
	for k, v := range patch {
		dst[k] = v
	}
}

// Type tags keep strings and JSON-encoded values in separate byte spaces,
// so "7" and 7 never hash alike.
const (
	tagString byte = 's'
	tagJSON   byte = 'j'
)

// KeyBytes returns the bytes a primary-key value is hashed from: a type tag
// followed by the raw bytes for strings, or by the JSON encoding for every
// other value. JSON sorts map keys and renders 1 and 1.0 identically.
func KeyBytes(v any) ([]byte, error) {
	if s, ok := v.(string); ok {
		return append([]byte{tagString}, s...), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte{tagJSON}, b...), nil
}

// Equal reports whether two field values are the same. Numbers compare by
// numeric value regardless of their Go type, so a value read back from a
// snapshot still matches the int it was written as.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, exists := bv[k]
			if !exists || !Equal(x, y) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
