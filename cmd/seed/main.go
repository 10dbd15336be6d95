// Command seed loads a yaml catalog file into the database and upserts
// product embeddings into the vector index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	oai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"github.com/trailpost/shopagent/pkg/shop"
	catalogpg "github.com/trailpost/shopagent/pkg/shop/catalog/postgres"
	"github.com/trailpost/shopagent/pkg/shop/search"
	searchpg "github.com/trailpost/shopagent/pkg/shop/search/postgres"
)

// Embedding batches stay well under the API's input cap.
const batchSize = 100

type catalogFile struct {
	Products []struct {
		Name        string  `yaml:"name"`
		Description string  `yaml:"description"`
		Price       float64 `yaml:"price"`
		Category    string  `yaml:"category"`
		Brand       string  `yaml:"brand"`
		Stock       int     `yaml:"stock"`
		ImageURL    string  `yaml:"imageUrl"`
	} `yaml:"products"`
}

func main() {
	catalogPath := flag.String("catalog", "catalog.yaml", "path to the yaml catalog file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), *catalogPath, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, catalogPath string, logger *slog.Logger) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing catalog: %w", err)
	}
	if len(file.Products) == 0 {
		return fmt.Errorf("catalog file has no products")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	for _, ddl := range []string{catalogpg.Migration(), searchpg.Migration()} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("applying migration: %w", err)
		}
	}

	catalog := catalogpg.New(pool)
	index := searchpg.New(pool)
	embedder := search.NewOpenAIEmbedder(oai.NewClient(os.Getenv("OPENAI_API_KEY")), "")

	products := make([]shop.Product, 0, len(file.Products))
	for _, entry := range file.Products {
		p := shop.Product{
			Name:        entry.Name,
			Description: entry.Description,
			Price:       entry.Price,
			Category:    entry.Category,
			Brand:       entry.Brand,
			Stock:       entry.Stock,
			ImageURL:    entry.ImageURL,
		}
		if err := catalog.Create(ctx, &p); err != nil {
			return fmt.Errorf("creating %q: %w", p.Name, err)
		}
		products = append(products, p)
	}
	logger.Info("inserted products", "count", len(products))

	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		batch := products[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = search.ProductText(p)
		}

		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch at %d: %w", start, err)
		}

		for i, p := range batch {
			if err := index.Upsert(ctx, p.ID, vectors[i]); err != nil {
				return fmt.Errorf("upserting embedding for %q: %w", p.Name, err)
			}
		}
		logger.Info("embedded batch", "from", start, "to", end)
	}

	logger.Info("seed complete", "products", len(products))
	return nil
}
