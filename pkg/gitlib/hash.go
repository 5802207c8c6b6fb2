// Package gitlib provides read-only access to git content stores using libgit2.
package gitlib

import (
	"encoding/hex"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

const (
	// HashSize is the length of a SHA-1 object id in bytes.
	HashSize = 20
	// HashHexSize is the length of a SHA-1 object id in hex digits.
	HashHexSize = 2 * HashSize

	shortHexSize = 7
)

// ErrInvalidHash is returned when a string is not a full hex-encoded object id.
var ErrInvalidHash = errors.New("invalid object id")

// Hash is a git object id. Equal hashes denote the same object.
type Hash [HashSize]byte

// NewHash decodes hexStr without validation, for tests and trusted input.
// Decoding stops at the first malformed digit pair; the remaining bytes stay zero.
func NewHash(hexStr string) Hash {
	var h Hash

	n := min(len(hexStr), HashHexSize) &^ 1
	_, _ = hex.Decode(h[:], []byte(hexStr[:n])) //nolint:errcheck // partial decode is the contract.

	return h
}

// ParseHash decodes a 40-character hex object id.
func ParseHash(hexStr string) (Hash, error) {
	if len(hexStr) != HashHexSize {
		return Hash{}, fmt.Errorf("%w: %q has length %d", ErrInvalidHash, hexStr, len(hexStr))
	}

	var h Hash

	if _, err := hex.Decode(h[:], []byte(hexStr)); err != nil {
		return Hash{}, fmt.Errorf("%w: %q: %w", ErrInvalidHash, hexStr, err)
	}

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	return Hash(*oid)
}

// ToOid converts h to a libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := git2go.Oid(h)

	return &oid
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the abbreviated id git prints in one-line logs.
func (h Hash) Short() string {
	return h.String()[:shortHexSize]
}

// IsZero reports whether h is the zero id.
func (h Hash) IsZero() bool {
	return h == Hash{}
}
