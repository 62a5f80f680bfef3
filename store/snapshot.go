package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// LoadStatus is the outcome of a best-effort Hydrate.
type LoadStatus int

const (
	StatusLoaded LoadStatus = iota
	StatusNotFound
	StatusMalformed
	StatusUnreadable
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusNotFound:
		return "not_found"
	case StatusMalformed:
		return "malformed"
	default:
		return "unreadable"
	}
}

// Save encodes v as JSON and writes it to b, replacing the prior snapshot.
// A nil backend means no path was configured.
func Save(b Backend, v any) error {
	if b == nil {
		return ErrNoPath
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return b.Write(payload)
}

// SaveAsync encodes v before returning and writes it on a separate
// goroutine. The returned channel receives exactly one value: nil on success
// or the write error. v may be mutated as soon as SaveAsync returns.
func SaveAsync(b Backend, v any) <-chan error {
	done := make(chan error, 1)
	if b == nil {
		done <- ErrNoPath
		return done
	}
	payload, err := json.Marshal(v)
	if err != nil {
		done <- fmt.Errorf("%w: %v", ErrEncode, err)
		return done
	}
	go func() {
		done <- b.Write(payload)
	}()
	return done
}

// Hydrate reads the snapshot in b and decodes it into dst. dst is only
// touched on StatusLoaded. A missing snapshot is StatusNotFound with a nil
// error; undecodable content is StatusMalformed; any other read failure is
// StatusUnreadable. The caller decides which of these it tolerates.
func Hydrate[T any](b Backend, dst *T) (LoadStatus, error) {
	if b == nil {
		return StatusNotFound, ErrNoPath
	}
	data, err := b.Read()
	switch {
	case errors.Is(err, ErrNotFound):
		return StatusNotFound, nil
	case errors.Is(err, ErrMalformed):
		return StatusMalformed, err
	case err != nil:
		return StatusUnreadable, err
	}

	var decoded T
	if err := json.Unmarshal(data, &decoded); err != nil {
		return StatusMalformed, fmt.Errorf("%w: %s: %v", ErrMalformed, b.Location(), err)
	}
	*dst = decoded
	return StatusLoaded, nil
}
