package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyLength is the number of hex characters produced by HashKey.
const KeyLength = 16

// HashKey derives a fixed-width key from the concatenation of parts.
// The key is the first KeyLength hex characters of SHA-256 over the parts.
func HashKey(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:KeyLength/2])
}
