package search

import (
	"context"
	"testing"

	"github.com/trailpost/shopagent/pkg/shop"
	"github.com/trailpost/shopagent/pkg/shop/catalog"
)

// fixedEmbedder maps known strings to fixed vectors.
type fixedEmbedder struct {
	vectors map[string][]float64
}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return e.vectors[text], nil
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = e.vectors[t]
	}
	return out, nil
}

func seedSearch(t *testing.T) (*Service, *fixedEmbedder) {
	t.Helper()
	ctx := context.Background()

	cat := catalog.NewMemoryStore()
	products := []shop.Product{
		{Name: "Down Jacket", Price: 200, Category: "jackets", Brand: "Summit", Stock: 3},
		{Name: "Rain Shell", Price: 90, Category: "jackets", Brand: "Drizzle", Stock: 8},
		{Name: "Camp Stove", Price: 60, Category: "cooking", Brand: "Flame", Stock: 0},
	}
	for i := range products {
		if err := cat.Create(ctx, &products[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	index := NewMemoryIndex()
	// Axis-aligned vectors: jacket queries land near IDs 1 and 2.
	index.Upsert(ctx, 1, []float64{1, 0, 0})
	index.Upsert(ctx, 2, []float64{0.9, 0.1, 0})
	index.Upsert(ctx, 3, []float64{0, 0, 1})

	embedder := &fixedEmbedder{vectors: map[string][]float64{
		"warm jacket": {1, 0, 0},
		"stove":       {0, 0, 1},
	}}

	return NewService(embedder, index, cat), embedder
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns products in similarity order", func(t *testing.T) {
		svc, _ := seedSearch(t)

		products, err := svc.Search(ctx, shop.SearchQuery{Text: "warm jacket", TopK: 5})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(products) < 2 {
			t.Fatalf("expected at least 2 hits, got %d", len(products))
		}
		if products[0].ID != 1 || products[1].ID != 2 {
			t.Errorf("wrong order: %d, %d", products[0].ID, products[1].ID)
		}
	})

	t.Run("max price filter drops expensive matches", func(t *testing.T) {
		svc, _ := seedSearch(t)

		maxPrice := 100.0
		products, err := svc.Search(ctx, shop.SearchQuery{Text: "warm jacket", MaxPrice: &maxPrice, TopK: 5})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		for _, p := range products {
			if p.Price > maxPrice {
				t.Errorf("product over max price: %+v", p)
			}
		}
		if len(products) != 1 || products[0].Name != "Rain Shell" {
			t.Errorf("expected only the rain shell, got %+v", products)
		}
	})

	t.Run("out-of-stock products are excluded by default", func(t *testing.T) {
		svc, _ := seedSearch(t)

		products, err := svc.Search(ctx, shop.SearchQuery{Text: "stove", InStockOnly: true, TopK: 5})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		for _, p := range products {
			if p.ID == 3 {
				t.Error("out-of-stock stove returned")
			}
		}
	})

	t.Run("category filter is a case-insensitive substring", func(t *testing.T) {
		svc, _ := seedSearch(t)

		products, err := svc.Search(ctx, shop.SearchQuery{Text: "warm jacket", Category: "JACKET", TopK: 5})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if len(products) != 2 {
			t.Errorf("expected 2 jackets, got %d", len(products))
		}
	})
}
