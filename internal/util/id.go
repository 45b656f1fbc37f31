package util

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateID returns a random identifier with given prefix, e.g. "J3f9a...".
func GenerateID(prefix string) string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return prefix + hex.EncodeToString(bytes)
}
