// Package ledger records settled payments as durable, append-only receipts.
// There is no rollback path here: compensating actions belong to an external
// ledger service, not this store.
package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/agentmesh/agentpay/pkg/types"
)

// ErrNotFound is returned when no receipt matches the given id.
var ErrNotFound = errors.New("ledger: receipt not found")

// Store appends and reads payment receipts. Implementations must be safe for
// concurrent use.
type Store interface {
	Record(ctx context.Context, receipt *types.PaymentReceipt) error
	GetByID(ctx context.Context, id string) (*types.PaymentReceipt, error)
	List(ctx context.Context, limit int) ([]*types.PaymentReceipt, error)
}

// MemoryStore is an in-memory Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts []*types.PaymentReceipt
	byID     map[string]*types.PaymentReceipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*types.PaymentReceipt)}
}

func (s *MemoryStore) Record(_ context.Context, receipt *types.PaymentReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *receipt
	s.receipts = append(s.receipts, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*types.PaymentReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*types.PaymentReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.receipts) {
		limit = len(s.receipts)
	}
	out := make([]*types.PaymentReceipt, 0, limit)
	// newest first
	for i := len(s.receipts) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.receipts[i]
		out = append(out, &cp)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
