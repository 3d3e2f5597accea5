// Package seed derives reproducible random sources for seeded vault games.
package seed

import (
	"crypto/hmac"
	"crypto/sha256"
	"math/rand/v2"
)

// Derive returns HMAC-SHA256(salt, key).
func Derive(salt, key string) [32]byte {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(key))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Source returns a deterministic generator for (salt, key).
// The same pair always yields the same secret sequence.
func Source(salt, key string) *rand.Rand {
	return rand.New(rand.NewChaCha8(Derive(salt, key)))
}
