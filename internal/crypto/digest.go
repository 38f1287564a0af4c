// Package crypto holds server-side randomness and document digests.
package crypto

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Digest returns the hex BLAKE2b-256 digest of a rendered document.
func Digest(doc []byte) string {
	sum := blake2b.Sum256(doc)
	return hex.EncodeToString(sum[:])
}
