package hashtable

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/blake2b"

	"github.com/stevemurr/drapid/store"
)

// Digest reduces primary-key bytes to a uniformly distributed integer.
// Implementations must be pure.
type Digest interface {
	Sum64(b []byte) uint64
	Name() string
}

// Blake2b uses the first 8 bytes of a BLAKE2b-256 digest, big-endian.
type Blake2b struct{}

func (Blake2b) Sum64(b []byte) uint64 {
	sum := blake2b.Sum256(b)
	return binary.BigEndian.Uint64(sum[:8])
}

func (Blake2b) Name() string { return "blake2b" }

// Murmur3 uses the 64-bit MurmurHash3. Not cryptographic, but faster and
// equally well distributed for slot addressing.
type Murmur3 struct{}

func (Murmur3) Sum64(b []byte) uint64 { return murmur3.Sum64(b) }

func (Murmur3) Name() string { return "murmur3" }

// DigestByName returns a built-in digest by its stable name. An empty name
// selects Blake2b.
func DigestByName(name string) (Digest, error) {
	switch name {
	case "", "blake2b":
		return Blake2b{}, nil
	case "murmur3":
		return Murmur3{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown digest %q (supported: blake2b, murmur3)", store.ErrConfiguration, name)
	}
}
