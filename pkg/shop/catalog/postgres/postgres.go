// Package postgres implements shop.Catalog on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trailpost/shopagent/pkg/shop"
)

// Store implements shop.Catalog with PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL catalog store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const productColumns = "id, name, description, price, category, brand, stock, COALESCE(image_url, ''), created_at"

func scanProduct(row pgx.Row) (shop.Product, error) {
	var p shop.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Brand, &p.Stock, &p.ImageURL, &p.CreatedAt)
	return p, err
}

func (s *Store) Get(ctx context.Context, id int64) (shop.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns)

	p, err := scanProduct(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.Product{}, shop.ErrNotFound
	}
	if err != nil {
		return shop.Product{}, fmt.Errorf("querying product %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) ByIDs(ctx context.Context, ids []int64) ([]shop.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = ANY($1)", productColumns)
	return s.queryProducts(ctx, query, ids)
}

func (s *Store) List(ctx context.Context) ([]shop.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products ORDER BY id", productColumns)
	return s.queryProducts(ctx, query)
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]shop.Product, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []shop.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading products: %w", err)
	}
	return products, nil
}

func (s *Store) Create(ctx context.Context, p *shop.Product) error {
	query := `
		INSERT INTO products (name, description, price, category, brand, stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING id, created_at
	`

	err := s.pool.QueryRow(ctx, query, p.Name, p.Description, p.Price, p.Category, p.Brand, p.Stock, p.ImageURL).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

// Migration returns the SQL to create the products table.
func Migration() string {
	return `
		CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			price NUMERIC(10, 2) NOT NULL,
			category VARCHAR(100) NOT NULL,
			brand VARCHAR(100) NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0,
			image_url VARCHAR(500),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
}
