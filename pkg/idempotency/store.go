// Package idempotency gives the payment gate at-most-once admission
// semantics per proof. A proof key is checked and inserted atomically before
// the resource handler runs; a second request presenting the same proof is
// rejected instead of double-spending.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ProofKey derives the replay key from the raw decoded proof bytes. The
// payload includes the signature and any transaction hash, so the key is
// unique per payment attempt.
func ProofKey(payloadBytes []byte) string {
	hash := sha256.Sum256(payloadBytes)
	return hex.EncodeToString(hash[:])
}

// ProofStore tracks consumed proof keys. Implementations must be safe for
// concurrent use; CheckAndMark must be atomic so exactly one of N concurrent
// requests with the same proof wins.
type ProofStore interface {
	// CheckAndMark returns true if the key was unseen and is now marked
	// consumed, false if it was already consumed.
	CheckAndMark(key string) bool
	// Release removes a mark so the proof may be retried. Called when the
	// handler fails after admission and no receipt was produced.
	Release(key string)
}

// MemoryStore is an in-memory ProofStore with TTL-bounded entries, suitable
// for single-instance deployments. Distributed deployments want a shared
// backend behind the same interface.
type MemoryStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
	ttl   time.Duration
}

// NewMemoryStore creates a store whose marks expire after ttl. The TTL only
// needs to outlive the proof validity window (maxTimeoutSeconds); beyond
// that, an expired proof fails verification anyway.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		marks: make(map[string]time.Time),
		ttl:   ttl,
	}
}

func (s *MemoryStore) CheckAndMark(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiry, exists := s.marks[key]; exists && now.Before(expiry) {
		return false
	}
	s.marks[key] = now.Add(s.ttl)
	s.cleanupExpiredLocked(now)
	return true
}

func (s *MemoryStore) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks, key)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (s *MemoryStore) cleanupExpiredLocked(now time.Time) {
	for key, expiry := range s.marks {
		if now.After(expiry) {
			delete(s.marks, key)
		}
	}
}

var _ ProofStore = (*MemoryStore)(nil)
