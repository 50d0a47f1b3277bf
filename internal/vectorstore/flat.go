package vectorstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatStore is the exhaustive in-memory backend. Vectors are L2-normalized
// on insert so the inner product equals cosine similarity. The index
// persists as two companion artifacts next to basePath: a serialized vector
// matrix (.index) and a parallel chunk-metadata array (.meta), both
// rewritten atomically on save.
type FlatStore struct {
	basePath   string
	dimensions int

	mu      sync.RWMutex
	vectors [][]float32
	chunks  []Chunk
	// byKey maps filename#location to its slot for idempotent re-indexing.
	byKey map[string]int
}

// NewFlatStore creates a flat store rooted at basePath, loading any
// previously saved artifacts.
func NewFlatStore(basePath string, dimensions int) (*FlatStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("flat vector store: index path is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("flat vector store: invalid embedding dimensions %d", dimensions)
	}
	s := &FlatStore{
		basePath:   basePath,
		dimensions: dimensions,
		byKey:      make(map[string]int),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlatStore) indexPath() string { return s.basePath + ".index" }
func (s *FlatStore) metaPath() string  { return s.basePath + ".meta" }

// normalize scales vec to unit length in place and returns it.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func (s *FlatStore) Search(ctx context.Context, queryVec []float32, repo, branch string, k int) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(queryVec) != s.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d", len(queryVec), s.dimensions)
	}

	q := normalize(append([]float32(nil), queryVec...))

	type scored struct {
		idx int
		sim float64
	}
	var matches []scored
	for i, c := range s.chunks {
		if repo != "" && c.Repo != repo {
			continue
		}
		if branch != "" && c.Branch != branch {
			continue
		}
		matches = append(matches, scored{idx: i, sim: dot(q, s.vectors[i])})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].sim > matches[j].sim
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	candidates := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		c := s.chunks[m.idx]
		candidates = append(candidates, Candidate{
			Filename:   c.Filename,
			Language:   c.Language,
			Code:       c.Code,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Symbols:    c.Symbols,
			Calls:      c.Calls,
			Repo:       c.Repo,
			Branch:     c.Branch,
			Distance:   1.0 - m.sim,
			Similarity: m.sim,
		})
	}
	return candidates, nil
}

func (s *FlatStore) Upsert(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	for _, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			s.mu.Unlock()
			return fmt.Errorf("chunk %s#%s has %d dimensions, store expects %d",
				c.Filename, c.Location, len(c.Embedding), s.dimensions)
		}
		vec := normalize(append([]float32(nil), c.Embedding...))
		meta := c
		meta.Embedding = nil // vectors live in the parallel matrix

		key := c.Filename + "#" + c.Location
		if i, ok := s.byKey[key]; ok {
			s.vectors[i] = vec
			s.chunks[i] = meta
		} else {
			s.byKey[key] = len(s.chunks)
			s.vectors = append(s.vectors, vec)
			s.chunks = append(s.chunks, meta)
		}
	}
	s.mu.Unlock()
	return s.Save()
}

func (s *FlatStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *FlatStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	s.byKey = make(map[string]int)
	for _, p := range []string{s.indexPath(), s.metaPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Save rewrites both companion artifacts atomically.
func (s *FlatStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(s.basePath), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	if err := writeGobAtomic(s.indexPath(), s.vectors); err != nil {
		return fmt.Errorf("writing vector index: %w", err)
	}
	if err := writeGobAtomic(s.metaPath(), s.chunks); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}
	return nil
}

func (s *FlatStore) load() error {
	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		return nil
	}
	if err := readGob(s.indexPath(), &s.vectors); err != nil {
		return fmt.Errorf("loading vector index: %w", err)
	}
	if err := readGob(s.metaPath(), &s.chunks); err != nil {
		return fmt.Errorf("loading index metadata: %w", err)
	}
	if len(s.vectors) != len(s.chunks) {
		return fmt.Errorf("flat index corrupt: %d vectors but %d metadata rows", len(s.vectors), len(s.chunks))
	}
	for i, c := range s.chunks {
		s.byKey[c.Filename+"#"+c.Location] = i
	}
	return nil
}

func (s *FlatStore) Close() error { return nil }

func writeGobAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
