package hashtable

import (
	"errors"
	"fmt"

	"github.com/stevemurr/drapid/store"
)

// ErrCollision is the kind shared by slot conflicts.
var ErrCollision = errors.New("slot collision")

var (
	// ErrSlotOccupied is returned by Include when the addressed slot already
	// holds a record, whether or not its key is the same.
	ErrSlotOccupied = fmt.Errorf("%w: position already occupied by other record", ErrCollision)
	// ErrSlotEmpty is returned by Combine when the addressed slot is empty.
	ErrSlotEmpty = fmt.Errorf("%w: no record at position", ErrCollision)

	ErrNoPrimaryKey    = fmt.Errorf("%w: hash table requires a primary key", store.ErrConfiguration)
	ErrMissingKeyValue = errors.New("record has no primary-key field")
)
