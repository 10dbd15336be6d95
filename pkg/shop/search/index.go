package search

import (
	"context"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Match is one index hit.
type Match struct {
	ID    int64
	Score float64
}

// VectorIndex is the black-box similarity index. Implementations must return
// matches best-first.
type VectorIndex interface {
	Upsert(ctx context.Context, id int64, vector []float64) error
	Query(ctx context.Context, vector []float64, topK int) ([]Match, error)
}

// MemoryIndex is a brute-force cosine-similarity index for development and
// tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[int64][]float64
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[int64][]float64)}
}

func (ix *MemoryIndex) Upsert(ctx context.Context, id int64, vector []float64) error {
	vec := make([]float64, len(vector))
	copy(vec, vector)

	ix.mu.Lock()
	ix.vectors[id] = vec
	ix.mu.Unlock()
	return nil
}

func (ix *MemoryIndex) Query(ctx context.Context, vector []float64, topK int) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]Match, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		if len(vec) != len(vector) {
			continue
		}
		matches = append(matches, Match{ID: id, Score: Cosine(vector, vec)})
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

// Cosine returns the cosine similarity of two vectors, 0 for degenerate
// input.
func Cosine(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	score := floats.Dot(a, b) / (na * nb)
	if math.IsNaN(score) {
		return 0
	}
	return score
}
