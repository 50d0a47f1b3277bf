package search

import (
	"testing"

	"codemind/internal/vectorstore"
)

func candidate(filename string, similarity float64, symbols, calls []string) vectorstore.Candidate {
	return vectorstore.Candidate{
		Filename:   filename,
		Similarity: similarity,
		Symbols:    symbols,
		Calls:      calls,
	}
}

func TestRerankSymbolBoost(t *testing.T) {
	candidates := []vectorstore.Candidate{
		candidate("config.py", 0.41, []string{"parse_config"}, nil),
		candidate("other.py", 0.45, nil, nil),
	}

	results := Rerank(candidates, "parse_config something", 25)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// 0.41 + 0.10 = 0.51 outranks the unboosted 0.45.
	if results[0].Filename != "config.py" {
		t.Errorf("top result = %s, want config.py", results[0].Filename)
	}
	if got := results[0].Score; got != 0.51 {
		t.Errorf("boosted score = %v, want 0.51", got)
	}
	if !results[0].StructuralBoost {
		t.Error("StructuralBoost = false, want true")
	}
	if results[1].StructuralBoost {
		t.Error("unboosted candidate has StructuralBoost = true")
	}
	if got := results[1].Score; got != 0.45 {
		t.Errorf("unboosted score = %v, want 0.45", got)
	}
}

func TestRerankCallBoost(t *testing.T) {
	candidates := []vectorstore.Candidate{
		candidate("a.go", 0.40, nil, []string{"LoadConfig"}),
	}

	// Call-name matching is case-insensitive.
	results := Rerank(candidates, "loadconfig usage", 25)

	if got := results[0].Score; got != 0.45 {
		t.Errorf("score = %v, want 0.45", got)
	}
	if !results[0].StructuralBoost {
		t.Error("StructuralBoost = false, want true")
	}
}

func TestRerankBoostsAreAdditive(t *testing.T) {
	candidates := []vectorstore.Candidate{
		candidate("a.go", 0.40, []string{"parse"}, []string{"parse"}),
	}

	results := Rerank(candidates, "parse", 25)

	// Symbol and call boosts apply independently to the same candidate.
	want := 0.40 + 0.10 + 0.05
	if got := results[0].Score; got != want {
		t.Errorf("score = %v, want %v", got, want)
	}
}

func TestRerankNoMatchLeavesSimilarity(t *testing.T) {
	candidates := []vectorstore.Candidate{
		candidate("a.go", 0.7, []string{"HandleLogin"}, []string{"Validate"}),
	}

	results := Rerank(candidates, "database migrations", 25)

	if got := results[0].Score; got != 0.7 {
		t.Errorf("score = %v, want 0.7", got)
	}
	if results[0].StructuralBoost {
		t.Error("StructuralBoost = true, want false")
	}
}

func TestRerankOrderingAndTruncation(t *testing.T) {
	var candidates []vectorstore.Candidate
	for i := 0; i < 40; i++ {
		candidates = append(candidates, candidate("f.go", float64(i)/100, nil, nil))
	}

	results := Rerank(candidates, "anything", 25)

	if len(results) != 25 {
		t.Fatalf("got %d results, want 25", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Score < results[i].Score {
			t.Fatalf("results not sorted descending at %d: %v < %v", i, results[i-1].Score, results[i].Score)
		}
	}
}

func TestRerankStableTies(t *testing.T) {
	candidates := []vectorstore.Candidate{
		candidate("first.go", 0.5, nil, nil),
		candidate("second.go", 0.5, nil, nil),
		candidate("third.go", 0.5, nil, nil),
	}

	results := Rerank(candidates, "no match", 25)

	// Equal scores keep the backend's original order.
	want := []string{"first.go", "second.go", "third.go"}
	for i, w := range want {
		if results[i].Filename != w {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Filename, w)
		}
	}
}

func TestRerankIdempotent(t *testing.T) {
	candidates := []vectorstore.Candidate{
		candidate("a.go", 0.3, []string{"run"}, nil),
		candidate("b.go", 0.6, nil, nil),
		candidate("c.go", 0.2, nil, []string{"run"}),
	}

	first := Rerank(candidates, "run", 25)

	// Rerank the already-reranked list: strip the scores back to candidates.
	again := make([]vectorstore.Candidate, len(first))
	for i, r := range first {
		again[i] = r.Candidate
	}
	second := Rerank(again, "run", 25)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Filename != second[i].Filename || first[i].Score != second[i].Score {
			t.Errorf("result %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRerankEmptyInput(t *testing.T) {
	results := Rerank(nil, "query", 25)
	if len(results) != 0 {
		t.Errorf("got %d results for empty input, want 0", len(results))
	}
}
