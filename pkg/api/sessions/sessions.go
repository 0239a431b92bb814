// Package sessions holds the in-memory token registry. Tokens are
// opaque credentials bound to one user id at issuance; the registry is
// deliberately not durable, so a process restart invalidates every
// session.
package sessions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const tokenBytes = 32

// Registry maps issued session tokens to user ids. All methods are safe
// for concurrent use.
type Registry interface {
	// Issue generates a fresh random token bound to the user id.
	Issue(userID uint) (string, error)

	// Resolve returns the user id a token was issued for, or false if
	// the token is unknown or expired.
	Resolve(token string) (uint, bool)

	// Revoke removes one token.
	Revoke(token string)

	// RevokeAllFor removes every token bound to the user id and
	// returns how many were removed.
	RevokeAllFor(userID uint) int

	// DeleteExpired removes expired tokens and returns how many were
	// removed. A no-op when no TTL is configured.
	DeleteExpired() int

	// Len returns the number of live tokens.
	Len() int
}

// Compile-time interface check.
var _ Registry = (*registry)(nil)

type session struct {
	userID    uint
	expiresAt time.Time
}

type registry struct {
	mu  sync.Mutex
	ttl time.Duration

	byToken map[string]session
}

// NewRegistry creates a Registry. A zero ttl means tokens never expire.
func NewRegistry(ttl time.Duration) Registry {
	return &registry{
		ttl:     ttl,
		byToken: make(map[string]session, 64),
	}
}

func (r *registry) Issue(userID uint) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	token := hex.EncodeToString(b)

	var expiresAt time.Time
	if r.ttl > 0 {
		expiresAt = time.Now().Add(r.ttl)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byToken[token] = session{userID: userID, expiresAt: expiresAt}

	return token, nil
}

func (r *registry) Resolve(token string) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byToken[token]
	if !ok {
		return 0, false
	}

	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		delete(r.byToken, token)

		return 0, false
	}

	return s.userID, true
}

func (r *registry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byToken, token)
}

func (r *registry) RevokeAllFor(userID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0

	for token, s := range r.byToken {
		if s.userID == userID {
			delete(r.byToken, token)

			removed++
		}
	}

	return removed
}

func (r *registry) DeleteExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	removed := 0

	for token, s := range r.byToken {
		if !s.expiresAt.IsZero() && now.After(s.expiresAt) {
			delete(r.byToken, token)

			removed++
		}
	}

	return removed
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byToken)
}
