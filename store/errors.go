package store

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrIO            = errors.New("i/o error")
	ErrNotFound      = errors.New("snapshot not found")
	ErrMalformed     = errors.New("malformed snapshot")
	ErrEncode        = errors.New("snapshot not encodable")
)

// ErrNoPath is returned when persisting a store that was built without a path.
var ErrNoPath = fmt.Errorf("%w: not possible to persist without a path", ErrConfiguration)
