// Package idgen generates the short opaque IDs used throughout the entity
// graph (e.g. ws_3af210): a scope prefix plus 6 hex characters drawn from a
// CSRNG. This is the same crypto/rand + encoding/hex primitive grove's
// daemon falls back to when it runs out of short sequential instance IDs
// (daemon.go: nextInstanceID), promoted here to the primary and only
// strategy since the ID format is fixed up front rather than grown
// incrementally.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// New returns a new id of the form "<prefix>_xxxxxx" where prefix is e.g.
// "repo", "ws", "tok".
func New(prefix string) string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on a supported platform does not fail; if it
		// somehow does, panicking is preferable to handing out a
		// predictable or colliding id.
		panic(fmt.Sprintf("idgen: crypto/rand failed: %v", err))
	}
	return prefix + "_" + hex.EncodeToString(b)
}

// Secret returns n raw CSRNG bytes, e.g. for token secrets.
func Secret(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("idgen: crypto/rand failed: %v", err))
	}
	return b
}
