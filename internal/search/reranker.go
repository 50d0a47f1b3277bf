package search

import (
	"sort"
	"strings"

	"codemind/internal/vectorstore"
)

const (
	// DefaultTopK bounds the final result list.
	DefaultTopK = 25

	symbolBoost = 0.10
	callBoost   = 0.05
)

// Result is a reranked candidate. Ordering among results is significant.
type Result struct {
	vectorstore.Candidate
	Score           float64 `json:"score"`
	StructuralBoost bool    `json:"structural_boost"`
}

// Rerank applies structural score boosts to the candidates and returns the
// final ordered, truncated list. A candidate whose symbols contain a query
// term gains a fixed boost; a call-name match gains a smaller, independent
// boost. Ties keep the candidates' original backend order (stable sort).
// Rerank is a pure function of (candidates, query): reranking an already
// reranked, already truncated list yields the same list.
func Rerank(candidates []vectorstore.Candidate, query string, topK int) []Result {
	if topK <= 0 {
		topK = DefaultTopK
	}

	terms := queryTerms(query)

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		r := Result{Candidate: c, Score: c.Similarity}
		if matchesAny(terms, c.Symbols) {
			r.Score += symbolBoost
			r.StructuralBoost = true
		}
		if matchesAny(terms, c.Calls) {
			r.Score += callBoost
			r.StructuralBoost = true
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// queryTerms splits the lowercased query into its whitespace-delimited terms.
func queryTerms(query string) map[string]bool {
	terms := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(query)) {
		terms[t] = true
	}
	return terms
}

// matchesAny reports whether any name equals a query term, case-insensitively.
func matchesAny(terms map[string]bool, names []string) bool {
	for _, n := range names {
		if terms[strings.ToLower(n)] {
			return true
		}
	}
	return false
}
