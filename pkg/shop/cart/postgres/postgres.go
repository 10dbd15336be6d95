// Package postgres implements shop.Cart on PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trailpost/shopagent/pkg/shop"
)

// Store implements shop.Cart with PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL cart store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Items(ctx context.Context, userID string) ([]shop.CartLine, error) {
	query := `
		SELECT p.id, p.name, p.description, p.price, p.category, p.brand, p.stock,
		       COALESCE(p.image_url, ''), p.created_at, c.quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying cart: %w", err)
	}
	defer rows.Close()

	var items []shop.CartLine
	for rows.Next() {
		var line shop.CartLine
		p := &line.Product
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
			&p.Brand, &p.Stock, &p.ImageURL, &p.CreatedAt, &line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("scanning cart line: %w", err)
		}
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cart: %w", err)
	}
	return items, nil
}

// Add is a single atomic upsert: concurrent adds of the same product sum
// their quantities instead of racing a read-modify-write.
func (s *Store) Add(ctx context.Context, userID string, productID int64, quantity int) error {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = cart_items.quantity + EXCLUDED.quantity
	`

	if _, err := s.pool.Exec(ctx, query, userID, productID, quantity); err != nil {
		return fmt.Errorf("adding to cart: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, userID string, productID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	if err != nil {
		return false, fmt.Errorf("removing from cart: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("clearing cart: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Migration returns the SQL to create the cart table.
func Migration() string {
	return `
		CREATE TABLE IF NOT EXISTS cart_items (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(100) NOT NULL,
			product_id BIGINT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, product_id)
		);

		CREATE INDEX IF NOT EXISTS idx_cart_items_user ON cart_items (user_id);
	`
}
