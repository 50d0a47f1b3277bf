package vectorstore

import (
	"context"
	"math"
	"path/filepath"
	"testing"
)

func setupFlatStore(t *testing.T) *FlatStore {
	t.Helper()
	base := filepath.Join(t.TempDir(), "code")
	s, err := NewFlatStore(base, 3)
	if err != nil {
		t.Fatalf("NewFlatStore: %v", err)
	}
	return s
}

func chunk(filename, location, repo, branch string, vec []float32) Chunk {
	return Chunk{
		Filename:  filename,
		Location:  location,
		Repo:      repo,
		Branch:    branch,
		Code:      "func x() {}",
		Embedding: vec,
	}
}

func TestFlatStoreEmptySearch(t *testing.T) {
	s := setupFlatStore(t)

	got, err := s.Search(context.Background(), []float32{1, 0, 0}, "", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates from empty store, want 0", len(got))
	}
}

func TestFlatStoreCosineRanking(t *testing.T) {
	s := setupFlatStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Chunk{
		chunk("near.go", "1-10", "r", "main", []float32{0.9, 0.1, 0}),
		chunk("far.go", "1-10", "r", "main", []float32{0, 0, 1}),
		chunk("mid.go", "1-10", "r", "main", []float32{0.5, 0.5, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, "", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	want := []string{"near.go", "mid.go", "far.go"}
	for i, w := range want {
		if got[i].Filename != w {
			t.Errorf("rank %d = %s, want %s", i, got[i].Filename, w)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Similarity < got[i].Similarity {
			t.Errorf("similarity not descending at %d", i)
		}
	}
	// Distance and similarity describe the same angle.
	for _, c := range got {
		if math.Abs((1.0-c.Similarity)-c.Distance) > 1e-9 {
			t.Errorf("%s: distance %v does not match 1-similarity %v", c.Filename, c.Distance, c.Similarity)
		}
	}
}

func TestFlatStoreFilters(t *testing.T) {
	s := setupFlatStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Chunk{
		chunk("a.go", "1-10", "repoA", "main", []float32{1, 0, 0}),
		chunk("b.go", "1-10", "repoB", "main", []float32{1, 0, 0}),
		chunk("c.go", "1-10", "repoA", "dev", []float32{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, "repoA", "main", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Filename != "a.go" {
		t.Errorf("got %s, want a.go", got[0].Filename)
	}

	// Filter with no matching rows returns zero candidates, not an error.
	got, err = s.Search(ctx, []float32{1, 0, 0}, "missing", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates for unknown repo, want 0", len(got))
	}
}

func TestFlatStoreKLimit(t *testing.T) {
	s := setupFlatStore(t)
	ctx := context.Background()

	var chunks []Chunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunk("f.go", string(rune('a'+i)), "r", "main", []float32{1, float32(i) / 10, 0}))
	}
	if err := s.Upsert(ctx, chunks); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, "", "", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d candidates, want 3", len(got))
	}
}

func TestFlatStoreUpsertReplacesByKey(t *testing.T) {
	s := setupFlatStore(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, []Chunk{chunk("a.go", "1-10", "r", "main", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Re-indexing the same (filename, location) replaces, never duplicates.
	if err := s.Upsert(ctx, []Chunk{chunk("a.go", "1-10", "r", "main", []float32{0, 1, 0})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}

	got, err := s.Search(ctx, []float32{0, 1, 0}, "", "", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Similarity < 0.99 {
		t.Errorf("replaced vector not found: %+v", got)
	}
}

func TestFlatStoreDimensionMismatch(t *testing.T) {
	s := setupFlatStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []Chunk{chunk("a.go", "1-10", "r", "main", []float32{1, 0})})
	if err == nil {
		t.Error("Upsert with wrong dimensions succeeded, want error")
	}

	if err := s.Upsert(ctx, []Chunk{chunk("a.go", "1-10", "r", "main", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	_, err = s.Search(ctx, []float32{1, 0}, "", "", 1)
	if err == nil {
		t.Error("Search with wrong query dimensions succeeded, want error")
	}
}

func TestFlatStoreSaveLoadRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "code")
	ctx := context.Background()

	s, err := NewFlatStore(base, 3)
	if err != nil {
		t.Fatalf("NewFlatStore: %v", err)
	}
	err = s.Upsert(ctx, []Chunk{
		chunk("a.go", "1-10", "r", "main", []float32{1, 0, 0}),
		chunk("b.go", "1-10", "r", "main", []float32{0, 1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// A fresh store over the same path loads the persisted artifacts.
	reloaded, err := NewFlatStore(base, 3)
	if err != nil {
		t.Fatalf("NewFlatStore reload: %v", err)
	}
	n, err := reloaded.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("reloaded Count = %d, want 2", n)
	}

	got, err := reloaded.Search(ctx, []float32{1, 0, 0}, "", "", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Filename != "a.go" {
		t.Errorf("reloaded search = %+v, want a.go", got)
	}
}

func TestFlatStoreReset(t *testing.T) {
	base := filepath.Join(t.TempDir(), "code")
	ctx := context.Background()

	s, err := NewFlatStore(base, 3)
	if err != nil {
		t.Fatalf("NewFlatStore: %v", err)
	}
	if err := s.Upsert(ctx, []Chunk{chunk("a.go", "1-10", "r", "main", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count after reset = %d, want 0", n)
	}

	// Artifacts are gone too: a reload starts empty.
	reloaded, err := NewFlatStore(base, 3)
	if err != nil {
		t.Fatalf("NewFlatStore reload: %v", err)
	}
	n, _ = reloaded.Count(ctx)
	if n != 0 {
		t.Errorf("reloaded Count after reset = %d, want 0", n)
	}
}
