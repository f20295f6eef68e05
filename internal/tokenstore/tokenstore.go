// Package tokenstore implements the pairing-token credential store:
// issuance, keyed-hash storage, constant-time validation, expiry, and
// revocation. grove has no equivalent concept (its own "token" command
// manages an unrelated agent-process credential); the CSRNG id idiom is
// shared with internal/idgen, grounded on daemon.go's nextInstanceID
// random-hex fallback.
package tokenstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandipndev/vex/internal/idgen"
)

// hashKey is a fixed, process-local key mixed into every keyed hash this
// store computes. It does not need to be secret to third parties who
// already have the plaintext secret (the secret itself is the capability);
// its purpose is only to make the stored digest a keyed hash, not a bare
// unsalted hash.
var hashKey = []byte("vex-token-store-v1")

// Record is one persisted token. SecretHash is a keyed digest of the raw
// 32-byte secret; the plaintext is never stored.
type Record struct {
	TokenID    string     `json:"token_id"`
	SecretHash string     `json:"secret_hash"` // hex-encoded HMAC-SHA256
	Label      string     `json:"label,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// Store is a flat ordered sequence of token records persisted as one
// owner-only file, rewritten in full after every mutation.
type Store struct {
	mu      sync.Mutex
	path    string
	records []*Record
}

// Open loads path if present, or starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("tokenstore: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("tokenstore: parse %s: %w", path, err)
	}
	return s, nil
}

func hashSecret(secret []byte) string {
	mac := hmac.New(sha256.New, hashKey)
	mac.Write(secret)
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue draws a fresh token id and 32-byte secret, stores the secret's
// keyed hash, and returns the plaintext secret — the only time it is ever
// visible. label and expiry are both optional.
func (s *Store) Issue(label string, expiresAt *time.Time) (tokenID, secretHex string, err error) {
	tokenID = idgen.New("tok")
	secret := idgen.Secret(32)
	secretHex = hex.EncodeToString(secret)

	s.mu.Lock()
	s.records = append(s.records, &Record{
		TokenID:    tokenID,
		SecretHash: hashSecret(secret),
		Label:      label,
		CreatedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	})
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return "", "", err
	}
	return tokenID, secretHex, nil
}

// Validate reports whether the presented secret (hex-encoded) matches the
// stored hash for tokenID, is not expired, and updates last_seen on
// success. It performs a keyed hash and a constant-time comparison on
// every call — including the unknown-id and expired paths — so no branch
// of this function leaks through timing which precondition failed.
func (s *Store) Validate(tokenID, secretHex string) bool {
	secret, decodeErr := hex.DecodeString(secretHex)

	s.mu.Lock()
	var rec *Record
	for _, r := range s.records {
		if r.TokenID == tokenID {
			rec = r
			break
		}
	}
	var storedHash string
	if rec != nil {
		storedHash = rec.SecretHash
	}
	s.mu.Unlock()

	// Always compute a hash, even on a decode failure or unknown id, so the
	// amount of work done does not vary with which precondition failed.
	computedHash := hashSecret(secret)
	match := subtle.ConstantTimeCompare([]byte(computedHash), []byte(storedHash)) == 1

	if decodeErr != nil || rec == nil || !match {
		return false
	}
	if rec.ExpiresAt != nil && time.Now().After(*rec.ExpiresAt) {
		return false
	}

	s.mu.Lock()
	now := time.Now()
	rec.LastSeen = &now
	s.mu.Unlock()

	// A last_seen persistence failure is logged and swallowed here;
	// validation itself has already succeeded and must not be undone by
	// an I/O hiccup.
	if err := s.persist(); err != nil {
		log.Printf("tokenstore: persist last_seen for %s: %v", tokenID, err)
	}
	return true
}

// Revoke removes tokenID, if present, and persists.
func (s *Store) Revoke(tokenID string) error {
	s.mu.Lock()
	out := s.records[:0]
	for _, r := range s.records {
		if r.TokenID != tokenID {
			out = append(out, r)
		}
	}
	s.records = out
	s.mu.Unlock()
	return s.persist()
}

// RevokeAll truncates the store and returns how many tokens were removed.
func (s *Store) RevokeAll() (int, error) {
	s.mu.Lock()
	n := len(s.records)
	s.records = nil
	s.mu.Unlock()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return n, nil
}

// List returns a snapshot of every record (never including secrets, since
// none are ever stored).
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// persist rewrites the whole file with owner-only permissions.
func (s *Store) persist() error {
	s.mu.Lock()
	records := make([]*Record, len(s.records))
	copy(records, s.records)
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
