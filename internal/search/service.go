package search

import (
	"context"
	"log"

	"codemind/internal/embeddings"
	"codemind/internal/vectorstore"
)

// DefaultCandidateK bounds the raw candidate set requested from the backend.
const DefaultCandidateK = 50

// Service composes a vector backend and the reranker behind a single
// entry point.
type Service struct {
	backend    vectorstore.Backend
	embedder   embeddings.Embedder
	candidateK int
	topK       int
}

// NewService creates a search service. candidateK and topK fall back to
// their defaults when non-positive.
func NewService(backend vectorstore.Backend, embedder embeddings.Embedder, candidateK, topK int) *Service {
	if candidateK <= 0 {
		candidateK = DefaultCandidateK
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Service{
		backend:    backend,
		embedder:   embedder,
		candidateK: candidateK,
		topK:       topK,
	}
}

// Search embeds the query, fetches candidates from the backend with the
// given repo/branch filters, and reranks. A backend or embedding failure
// degrades to zero results rather than surfacing to the caller: search
// must never fail on a transient backend issue.
func (s *Service) Search(ctx context.Context, query, repo, branch string) []Result {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		log.Printf("search: embedding query failed: %v", err)
		return []Result{}
	}

	candidates, err := s.backend.Search(ctx, vecs[0], repo, branch, s.candidateK)
	if err != nil {
		log.Printf("search: backend query failed: %v", err)
		return []Result{}
	}

	return Rerank(candidates, query, s.topK)
}
