package vectorstore

import (
	"context"
	"fmt"

	"codemind/internal/config"
	"codemind/internal/embeddings"
)

// Backend is the uniform contract over the vector-search stores. Filters
// combine with AND semantics; an empty repo or branch imposes no constraint.
// k bounds the number of raw candidates requested from the backend, not the
// final result size.
type Backend interface {
	// Search returns up to k candidates ordered by the backend's own
	// distance metric. Tenancy isolation is enforced here: when repo or
	// branch are set, no candidate from another repo/branch may appear.
	Search(ctx context.Context, queryVec []float32, repo, branch string, k int) ([]Candidate, error)

	// Upsert inserts or replaces chunks keyed by (filename, location).
	Upsert(ctx context.Context, chunks []Chunk) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Reset removes all stored chunks.
	Reset(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// FromConfig constructs the vector backend selected by the configuration.
// Configuration problems (missing connection string, unwritable index path)
// surface here, at construction time, never per-query.
func FromConfig(cfg *config.Config, embedder embeddings.Embedder) (Backend, error) {
	switch cfg.VectorBackend {
	case config.VectorPostgres:
		return NewPostgresStore(cfg.DatabaseURL, cfg.EmbeddingDimensions)
	case config.VectorChromem:
		return NewChromemStore(cfg.ChromemPath(), embeddings.ToChromemFunc(embedder))
	case config.VectorFlat:
		return NewFlatStore(cfg.FlatIndexPath(), cfg.EmbeddingDimensions)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
