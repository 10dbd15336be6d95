// Package search implements the semantic product search pipeline: embed the
// query, rank against the vector index, then apply the hard filters
// embeddings cannot encode (price, stock).
package search

import (
	"context"
	"fmt"

	oai "github.com/sashabaranov/go-openai"

	"github.com/trailpost/shopagent/pkg/shop"
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch embeds texts in one call, returning vectors in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// OpenAIEmbedder embeds with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *oai.Client
	model  oai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder. An empty model defaults to
// text-embedding-3-small.
func NewOpenAIEmbedder(client *oai.Client, model oai.EmbeddingModel) *OpenAIEmbedder {
	if model == "" {
		model = oai.SmallEmbedding3
	}
	return &OpenAIEmbedder{client: client, model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.CreateEmbeddings(ctx, oai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float64, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float64, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// ProductText builds the text embedded for a product. Price and stock are
// deliberately excluded: embeddings cannot encode numeric constraints, the
// filter step handles those.
func ProductText(p shop.Product) string {
	return fmt.Sprintf("%s. %s. Category: %s. Brand: %s.", p.Name, p.Description, p.Category, p.Brand)
}
