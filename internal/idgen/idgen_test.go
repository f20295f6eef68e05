package idgen_test

import (
	"regexp"
	"testing"

	"github.com/sandipndev/vex/internal/idgen"
	"github.com/stretchr/testify/assert"
)

func TestNewMatchesPrefixAndHexShape(t *testing.T) {
	re := regexp.MustCompile(`^ws_[0-9a-f]{6}$`)
	assert.Regexp(t, re, idgen.New("ws"))
}

func TestNewIsUnlikelyToCollide(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := idgen.New("tok")
		assert.False(t, seen[id], "unexpected collision on %s", id)
		seen[id] = true
	}
}

func TestSecretReturnsRequestedLength(t *testing.T) {
	s := idgen.Secret(32)
	assert.Len(t, s, 32)
}

func TestSecretIsNotAllZero(t *testing.T) {
	s := idgen.Secret(32)
	allZero := true
	for _, b := range s {
		if b != 0 {
			allZero = false
			break
		}
	}
	assert.False(t, allZero, "CSRNG output should not be all zero")
}
