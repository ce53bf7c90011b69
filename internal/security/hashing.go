package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyPassword is hashed once per Hasher so that lookups for unknown principals spend the same
// bcrypt work as a real comparison.
const dummyPassword = "voice-journal-dummy-password"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is the
// configured default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a salted bcrypt hash of password suitable for storage.
// Passwords longer than 72 bytes are rejected by bcrypt.
func (h *Hasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether password matches hash. A malformed or empty hash yields false.
func (h *Hasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CompareDummy burns one bcrypt comparison against a fixed hash and always returns false.
// Call it when no principal exists for the presented identifier.
func (h *Hasher) CompareDummy(password string) bool {
	h.dummyOnce.Do(func() {
		b, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), h.Cost)
		if err == nil {
			h.dummyHash = b
		}
	})
	if h.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	}
	return false
}
