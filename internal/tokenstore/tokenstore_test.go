package tokenstore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandipndev/vex/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenValidateRoundTrip(t *testing.T) {
	s, err := tokenstore.Open(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	id, secret, err := s.Issue("laptop", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "tok_"))
	assert.Len(t, secret, 64)

	assert.True(t, s.Validate(id, secret))
}

func TestValidateAfterRevokeFails(t *testing.T) {
	s, err := tokenstore.Open(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	id, secret, err := s.Issue("", nil)
	require.NoError(t, err)
	require.True(t, s.Validate(id, secret))

	require.NoError(t, s.Revoke(id))
	assert.False(t, s.Validate(id, secret))
}

func TestValidateUnknownIDFails(t *testing.T) {
	s, err := tokenstore.Open(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)
	assert.False(t, s.Validate("tok_ffffff", strings.Repeat("00", 32)))
}

func TestValidateExpiredFails(t *testing.T) {
	s, err := tokenstore.Open(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	id, secret, err := s.Issue("", &past)
	require.NoError(t, err)
	assert.False(t, s.Validate(id, secret))
}

func TestRevokeAllReturnsCount(t *testing.T) {
	s, err := tokenstore.Open(filepath.Join(t.TempDir(), "tokens.json"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err := s.Issue("", nil)
		require.NoError(t, err)
	}
	n, err := s.RevokeAll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, s.List())
}

func TestPersistedFileNeverContainsPlaintextSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	s, err := tokenstore.Open(path)
	require.NoError(t, err)

	var secrets []string
	for i := 0; i < 10; i++ {
		_, secret, err := s.Issue("", nil)
		require.NoError(t, err)
		secrets = append(secrets, secret)
	}

	rawBytes, err := os.ReadFile(path)
	require.NoError(t, err)
	raw := string(rawBytes)
	for _, secret := range secrets {
		assert.NotContains(t, raw, secret)
	}
}
