package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const chromemCollection = "code_embeddings"

// ChromemStore is the columnar approximate-nearest-neighbor backend,
// persisted as a chromem-go collection. Repo/branch filters become a
// post-filter expression evaluated by the store itself.
type ChromemStore struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc

	mu         sync.Mutex
	collection *chromem.Collection
}

// NewChromemStore opens (or creates) the persistent database at the
// given directory.
func NewChromemStore(path string, embedFunc chromem.EmbeddingFunc) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db at %s: %w", path, err)
	}
	s := &ChromemStore{db: db, embedFunc: embedFunc}
	// Reattach to an existing collection from a previous run, if any.
	s.collection = db.GetCollection(chromemCollection, embedFunc)
	return s, nil
}

// getCollection returns the live collection, creating it on first write.
// A nil return means no indexing run has populated the store yet.
func (s *ChromemStore) getCollection(create bool) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return s.collection, nil
	}
	if !create {
		return nil, nil
	}
	col, err := s.db.GetOrCreateCollection(chromemCollection, nil, s.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}
	s.collection = col
	return col, nil
}

func (s *ChromemStore) Search(ctx context.Context, queryVec []float32, repo, branch string, k int) ([]Candidate, error) {
	col, err := s.getCollection(false)
	if err != nil {
		return nil, err
	}
	// A missing collection means no indexing run has happened yet; that is
	// zero candidates, not an error.
	if col == nil {
		return nil, nil
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem-go requires nResults <= collection size.
	if k > count {
		k = count
	}

	where := make(map[string]string)
	if repo != "" {
		where["repo"] = repo
	}
	if branch != "" {
		where["branch"] = branch
	}
	if len(where) == 0 {
		where = nil
	}

	results, err := col.QueryEmbedding(ctx, queryVec, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	candidates := make([]Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, resultToCandidate(r))
	}
	return candidates, nil
}

func resultToCandidate(r chromem.Result) Candidate {
	startLine, _ := strconv.Atoi(r.Metadata["start_line"])
	endLine, _ := strconv.Atoi(r.Metadata["end_line"])

	var symbols, calls []string
	if v := r.Metadata["symbols"]; v != "" {
		json.Unmarshal([]byte(v), &symbols)
	}
	if v := r.Metadata["calls"]; v != "" {
		json.Unmarshal([]byte(v), &calls)
	}

	sim := float64(r.Similarity)
	return Candidate{
		Filename:   r.Metadata["filename"],
		Language:   r.Metadata["language"],
		Code:       r.Content,
		StartLine:  startLine,
		EndLine:    endLine,
		Symbols:    symbols,
		Calls:      calls,
		Repo:       r.Metadata["repo"],
		Branch:     r.Metadata["branch"],
		Distance:   1.0 - sim,
		Similarity: sim,
	}
}

func (s *ChromemStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	col, err := s.getCollection(true)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		symbols, err := json.Marshal(c.Symbols)
		if err != nil {
			return fmt.Errorf("marshalling symbols for %s: %w", c.Filename, err)
		}
		calls, err := json.Marshal(c.Calls)
		if err != nil {
			return fmt.Errorf("marshalling calls for %s: %w", c.Filename, err)
		}
		docs = append(docs, chromem.Document{
			// (filename, location) is the natural key; reusing it as the
			// document ID makes re-indexing overwrite in place.
			ID:        c.Filename + "#" + c.Location,
			Content:   c.Code,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"filename":     c.Filename,
				"location":     c.Location,
				"language":     c.Language,
				"start_line":   strconv.Itoa(c.StartLine),
				"end_line":     strconv.Itoa(c.EndLine),
				"symbols":      string(symbols),
				"calls":        string(calls),
				"repo":         c.Repo,
				"branch":       c.Branch,
				"index_run_id": c.IndexRunID,
			},
		})
	}

	return col.AddDocuments(ctx, docs, 1)
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	col, err := s.getCollection(false)
	if err != nil || col == nil {
		return 0, err
	}
	return col.Count(), nil
}

func (s *ChromemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("deleting chromem collection: %w", err)
	}
	s.collection = nil
	return nil
}

func (s *ChromemStore) Close() error { return nil }
