package hashtable

import (
	"log/slog"

	"github.com/stevemurr/drapid/metrics"
	"github.com/stevemurr/drapid/store"
)

// DefaultSize is the slot count used when Config.Size is not positive.
const DefaultSize = 131072

// Config holds table initialization parameters.
type Config struct {
	Path    string `json:"path,omitempty"`
	Backend string `json:"backend,omitempty"`
	// Key is the primary-key field whose value addresses a slot. Required.
	Key string `json:"key"`
	// Size is the fixed slot count.
	Size int `json:"size,omitempty"`
	// Digest names the hash function; see DigestByName.
	Digest string `json:"digest,omitempty"`

	Store   store.Backend    `json:"-"`
	Logger  *slog.Logger     `json:"-"`
	Metrics *metrics.Metrics `json:"-"`
}

// DefaultConfig returns a configuration with the default size and digest.
// Key must still be set.
func DefaultConfig() Config {
	return Config{
		Size:   DefaultSize,
		Digest: Blake2b{}.Name(),
	}
}
