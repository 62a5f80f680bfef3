// Package store defines the snapshot backends the collection and hashtable
// packages persist through. A backend holds exactly one serialized snapshot;
// every write replaces the previous one in full.
package store

// Backend is the interface that all snapshot backends must implement.
type Backend interface {
	// Read returns the current snapshot. It returns an error wrapping
	// ErrNotFound when nothing has been written yet.
	Read() ([]byte, error)

	// Write replaces the snapshot with payload. Failures wrap ErrIO.
	Write(payload []byte) error

	// Location describes where the snapshot lives, for diagnostics.
	Location() string
}
