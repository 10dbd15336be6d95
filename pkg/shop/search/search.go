package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/trailpost/shopagent/pkg/shop"
)

const defaultTopK = 10

// Service implements shop.Searcher: embed the query, rank against the index,
// fetch full records, filter, and re-sort by similarity.
type Service struct {
	embedder Embedder
	index    VectorIndex
	catalog  shop.Catalog
}

// NewService creates the search pipeline.
func NewService(embedder Embedder, index VectorIndex, catalog shop.Catalog) *Service {
	return &Service{embedder: embedder, index: index, catalog: catalog}
}

func (s *Service) Search(ctx context.Context, q shop.SearchQuery) ([]shop.Product, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	vector, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Overfetch: the hard filters below may discard matches.
	matches, err := s.index.Query(ctx, vector, topK*2)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	products, err := s.catalog.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	byID := make(map[int64]shop.Product, len(products))
	for _, p := range products {
		if !keep(p, q) {
			continue
		}
		byID[p.ID] = p
	}

	// Restore similarity order; the catalog does not preserve it.
	result := make([]shop.Product, 0, topK)
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		result = append(result, p)
		if len(result) == topK {
			break
		}
	}
	return result, nil
}

func keep(p shop.Product, q shop.SearchQuery) bool {
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.Category != "" && !strings.Contains(strings.ToLower(p.Category), strings.ToLower(q.Category)) {
		return false
	}
	if q.InStockOnly && p.Stock <= 0 {
		return false
	}
	return true
}
