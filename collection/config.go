package collection

import (
	"log/slog"

	"github.com/stevemurr/drapid/metrics"
	"github.com/stevemurr/drapid/store"
)

// Config holds collection initialization parameters.
type Config struct {
	// Path is the snapshot location. Empty disables persistence.
	Path string `json:"path,omitempty"`
	// Backend names the store backend for Path; empty infers it from the
	// extension.
	Backend string `json:"backend,omitempty"`
	// Key is the primary-key field used by Combine. Empty disables Combine.
	Key string `json:"key,omitempty"`

	// Store overrides Path/Backend with an already-open backend.
	Store   store.Backend    `json:"-"`
	Logger  *slog.Logger     `json:"-"`
	Metrics *metrics.Metrics `json:"-"`
}
