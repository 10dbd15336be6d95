// Package catalog implements the product store.
package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trailpost/shopagent/pkg/shop"
)

// MemoryStore is an in-memory shop.Catalog for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]shop.Product
	nextID   int64
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]shop.Product),
		nextID:   1,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (shop.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return shop.Product{}, shop.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ByIDs(ctx context.Context, ids []int64) ([]shop.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]shop.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]shop.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]shop.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *shop.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.nextID
	}
	if p.ID >= s.nextID {
		s.nextID = p.ID + 1
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products[p.ID] = *p
	return nil
}
