package store

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent computes the stable content-addressing digest for body.
func HashContent(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
