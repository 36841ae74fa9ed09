package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// DefaultStateTTL bounds how long a login can sit between /login and
// /callback. Ten minutes is plenty for a human to approve the authorization.
const DefaultStateTTL = 10 * time.Minute

// StateStore issues and redeems the CSRF state nonces of the OAuth flow.
//
// Every /login records a nonce; the matching /callback consumes it. A nonce
// is strictly single-use — replaying a state fails even with a valid code.
//
// EVICTION:
// Logins that never reach the callback (closed tab, denied authorization)
// would otherwise accumulate forever. Entries older than the TTL are
// rejected on Consume and purged on every Issue, so the map is bounded by
// the login rate within one TTL window.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // nonce → created at
	ttl     time.Duration
	now     func() time.Time // overridable in tests
}

// NewStateStore creates a store with the given nonce TTL.
// A non-positive ttl uses DefaultStateTTL.
func NewStateStore(ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue generates a cryptographically random nonce and records it.
//
// The nonce is the CSRF token of the OAuth flow, so it must be unguessable —
// 32 bytes from crypto/rand, not a timestamp-ordered id an attacker could
// enumerate from a neighboring value.
func (s *StateStore) Issue() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	nonce := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	s.entries[nonce] = s.now()
	return nonce
}

// Consume redeems a nonce. It reports false for an unknown, already-used,
// or stale nonce; true at most once per Issue.
func (s *StateStore) Consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, ok := s.entries[nonce]
	if !ok {
		return false
	}
	delete(s.entries, nonce)

	return s.now().Sub(created) <= s.ttl
}

// purgeLocked drops expired entries. Caller holds mu.
func (s *StateStore) purgeLocked() {
	cutoff := s.now().Add(-s.ttl)
	for nonce, created := range s.entries {
		if created.Before(cutoff) {
			delete(s.entries, nonce)
		}
	}
}

// Len reports the number of outstanding nonces.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
