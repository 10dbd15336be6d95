// Package shop holds the store domain: the product model, the store
// interfaces the agent tools run against, and the tool registrations
// themselves. Concrete stores live in the catalog, cart, and search
// subpackages.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trailpost/shopagent/pkg/agent/productref"
)

// ErrNotFound is returned by catalog lookups for unknown product IDs.
var ErrNotFound = errors.New("product not found")

// Product is one catalog entry.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Ref returns the product's reference tag fields.
func (p Product) Ref() productref.Ref {
	return productref.Ref{ID: p.ID, Name: p.Name, Price: p.Price}
}

// FormatProduct renders a product for the reasoning engine. The first line
// is the reference tag; later turns resolve "the cheaper one" through it.
func FormatProduct(p Product) string {
	return fmt.Sprintf("%s\n  Brand: %s | Category: %s | Stock: %d\n  %s",
		productref.Encode(p.Ref()), p.Brand, p.Category, p.Stock, p.Description)
}

// Catalog is the product store the tools read from.
type Catalog interface {
	Get(ctx context.Context, id int64) (Product, error)
	// ByIDs returns the products that exist, in no guaranteed order.
	ByIDs(ctx context.Context, ids []int64) ([]Product, error)
	List(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p *Product) error
}

// CartLine is one cart row joined with its product.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is the line price.
func (l CartLine) Subtotal() float64 {
	return l.Product.Price * float64(l.Quantity)
}

// Cart is the per-user cart store. Add must be an atomic increment: two
// concurrent adds of the same product sum their quantities instead of racing.
type Cart interface {
	Items(ctx context.Context, userID string) ([]CartLine, error)
	Add(ctx context.Context, userID string, productID int64, quantity int) error
	// Remove reports whether the product was present.
	Remove(ctx context.Context, userID string, productID int64) (bool, error)
	// Clear empties the cart and returns the number of removed lines.
	Clear(ctx context.Context, userID string) (int, error)
}

// SearchQuery is a semantic search request with optional hard filters.
type SearchQuery struct {
	Text        string
	MaxPrice    *float64
	Category    string
	InStockOnly bool
	TopK        int
}

// Searcher runs the semantic search pipeline and returns products in
// similarity order, best match first.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Product, error)
}
