// Package sha256 provides content digests for archived meet pages.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements xc.Hasher using SHA-256.
type Hasher struct {
	length int
}

// New returns a SHA-256 hasher whose digests are cut to length hex
// characters. length <= 0 or above 64 keeps the full digest.
func New(length int) *Hasher {
	if length <= 0 || length > hex.EncodedLen(sha256.Size) {
		length = hex.EncodedLen(sha256.Size)
	}
	return &Hasher{length: length}
}

// Hash hashes data and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:h.length], nil
}
