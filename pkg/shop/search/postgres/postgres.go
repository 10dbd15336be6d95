// Package postgres implements the vector index on PostgreSQL. Embeddings
// are stored as float8 arrays; similarity is computed in process, which is
// fine at catalog scale.
package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trailpost/shopagent/pkg/shop/search"
)

// Index implements search.VectorIndex with PostgreSQL.
type Index struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL vector index.
func New(pool *pgxpool.Pool) *Index {
	return &Index{pool: pool}
}

func (ix *Index) Upsert(ctx context.Context, id int64, vector []float64) error {
	query := `
		INSERT INTO product_embeddings (product_id, embedding, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (product_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := ix.pool.Exec(ctx, query, id, vector); err != nil {
		return fmt.Errorf("upserting embedding %d: %w", id, err)
	}
	return nil
}

func (ix *Index) Query(ctx context.Context, vector []float64, topK int) ([]search.Match, error) {
	rows, err := ix.pool.Query(ctx, "SELECT product_id, embedding FROM product_embeddings")
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var matches []search.Match
	for rows.Next() {
		var id int64
		var embedding []float64
		if err := rows.Scan(&id, &embedding); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		if len(embedding) != len(vector) {
			continue
		}
		matches = append(matches, search.Match{ID: id, Score: search.Cosine(vector, embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading embeddings: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Migration returns the SQL to create the embeddings table.
func Migration() string {
	return `
		CREATE TABLE IF NOT EXISTS product_embeddings (
			product_id BIGINT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
			embedding DOUBLE PRECISION[] NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
}
