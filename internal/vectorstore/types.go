package vectorstore

// Chunk is one indexed unit of code, produced by the analysis pipeline.
// (Filename, Location) is the natural primary key in every backend, which
// makes re-indexing a repo an idempotent upsert.
type Chunk struct {
	Filename   string    `json:"filename"`
	Language   string    `json:"language"`
	Location   string    `json:"location"`
	StartLine  int       `json:"start"`
	EndLine    int       `json:"end"`
	Code       string    `json:"code"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Symbols    []string  `json:"symbols"`
	Calls      []string  `json:"calls"`
	Repo       string    `json:"repo"`
	Branch     string    `json:"branch"`
	IndexRunID string    `json:"index_run_id,omitempty"`
}

// Candidate is a chunk returned by a backend search before reranking,
// carrying the backend-native distance and the derived similarity.
// Candidates are ephemeral and never persisted.
type Candidate struct {
	Filename   string   `json:"filename"`
	Language   string   `json:"language"`
	Code       string   `json:"code"`
	StartLine  int      `json:"start"`
	EndLine    int      `json:"end"`
	Symbols    []string `json:"symbols"`
	Calls      []string `json:"calls"`
	Repo       string   `json:"repo,omitempty"`
	Branch     string   `json:"branch,omitempty"`
	Distance   float64  `json:"-"`
	Similarity float64  `json:"similarity"`
}
