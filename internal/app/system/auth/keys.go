package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix starts every generated API key ("sk_" = secret key).
const KeyPrefix = "sk_"

// GenerateKey returns a new random API key: KeyPrefix plus 64 hex digits.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(b), nil
}

// HashKey returns a bcrypt hash of key. The hash can be configured as
// api_key in place of the key itself.
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsHashedKey reports whether a configured api_key is a bcrypt hash.
func IsHashedKey(key string) bool {
	return strings.HasPrefix(key, "$2a$") || strings.HasPrefix(key, "$2b$") || strings.HasPrefix(key, "$2y$")
}

// keyMatcher checks presented keys against the configured api_key, which
// is either the key itself or its bcrypt hash. The digest of the last
// accepted key is remembered so bcrypt runs once per distinct key rather
// than on every request.
type keyMatcher struct {
	configured string
	hashed     bool
	accepted   atomic.Pointer[[sha256.Size]byte]
}

func newKeyMatcher(configured string) *keyMatcher {
	return &keyMatcher{configured: configured, hashed: IsHashedKey(configured)}
}

func (m *keyMatcher) match(provided string) bool {
	if m.configured == "" || provided == "" {
		return false
	}
	if !m.hashed {
		return subtle.ConstantTimeCompare([]byte(provided), []byte(m.configured)) == 1
	}

	digest := sha256.Sum256([]byte(provided))
	if last := m.accepted.Load(); last != nil && subtle.ConstantTimeCompare(last[:], digest[:]) == 1 {
		return true
	}
	if bcrypt.CompareHashAndPassword([]byte(m.configured), []byte(provided)) != nil {
		return false
	}
	m.accepted.Store(&digest)
	return true
}
