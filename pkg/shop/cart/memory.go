// Package cart implements the per-user cart store.
package cart

import (
	"context"
	"sort"
	"sync"

	"github.com/trailpost/shopagent/pkg/shop"
)

// MemoryStore is an in-memory shop.Cart for development and tests. Its
// catalog backs the joined product fields in Items.
type MemoryStore struct {
	catalog shop.Catalog

	mu    sync.Mutex
	lines map[string]map[int64]int // userID -> productID -> quantity
}

// NewMemoryStore creates an empty in-memory cart.
func NewMemoryStore(catalog shop.Catalog) *MemoryStore {
	return &MemoryStore{
		catalog: catalog,
		lines:   make(map[string]map[int64]int),
	}
}

func (s *MemoryStore) Items(ctx context.Context, userID string) ([]shop.CartLine, error) {
	s.mu.Lock()
	quantities := make(map[int64]int, len(s.lines[userID]))
	for id, qty := range s.lines[userID] {
		quantities[id] = qty
	}
	s.mu.Unlock()

	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]shop.CartLine, 0, len(ids))
	for _, id := range ids {
		p, err := s.catalog.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, shop.CartLine{Product: p, Quantity: quantities[id]})
	}
	return items, nil
}

// Add increments under the store lock, so concurrent adds of the same
// product sum their quantities.
func (s *MemoryStore) Add(ctx context.Context, userID string, productID int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lines[userID] == nil {
		s.lines[userID] = make(map[int64]int)
	}
	s.lines[userID][productID] += quantity
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, userID string, productID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[userID][productID]; !ok {
		return false, nil
	}
	delete(s.lines[userID], productID)
	return true, nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.lines[userID])
	delete(s.lines, userID)
	return n, nil
}
