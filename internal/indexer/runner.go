package indexer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"codemind/internal/embeddings"
	"codemind/internal/jobs"
	"codemind/internal/vectorstore"
)

const embedBatchSize = 128

// Analyzer turns a repository checkout into annotated chunks. Symbol and
// call extraction is the analyzer's concern; chunks arrive fully annotated
// with everything except the embedding vector.
type Analyzer interface {
	Analyze(root, repo, branch, runID string) ([]vectorstore.Chunk, error)
}

// Runner executes indexing jobs as fire-and-forget background tasks. The
// submitting request returns immediately; callers observe progress only by
// polling the job status. Concurrency is capped by a semaphore and runs
// against the same (repo, branch) serialize on a per-target lock.
type Runner struct {
	tracker  *jobs.Tracker
	backend  vectorstore.Backend
	embedder embeddings.Embedder
	cloner   Cloner
	analyzer Analyzer

	checkoutRoot string
	sem          *semaphore.Weighted
	locks        *repoLocks
}

// NewRunner creates a runner with the given collaborators. maxWorkers caps
// the number of indexing tasks running at once.
func NewRunner(
	tracker *jobs.Tracker,
	backend vectorstore.Backend,
	embedder embeddings.Embedder,
	cloner Cloner,
	analyzer Analyzer,
	checkoutRoot string,
	maxWorkers int,
) *Runner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Runner{
		tracker:      tracker,
		backend:      backend,
		embedder:     embedder,
		cloner:       cloner,
		analyzer:     analyzer,
		checkoutRoot: checkoutRoot,
		sem:          semaphore.NewWeighted(int64(maxWorkers)),
		locks:        newRepoLocks(),
	}
}

// CheckoutRoot returns the directory holding per-run repository checkouts.
func (r *Runner) CheckoutRoot() string { return r.checkoutRoot }

// Submit schedules the indexing run for an already-created job and returns
// immediately. The background task owns all further status writes for this
// index_id.
func (r *Runner) Submit(indexID, repoURL, branch string) {
	go func() {
		ctx := context.Background()

		// Backpressure: waiting for a worker slot happens here, off the
		// request path, so a burst of submissions queues instead of
		// spawning unbounded work.
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.fail(ctx, indexID, fmt.Errorf("acquiring worker slot: %w", err))
			return
		}
		defer r.sem.Release(1)

		unlock := r.locks.Lock(repoURL, branch)
		defer unlock()

		defer func() {
			if p := recover(); p != nil {
				r.fail(ctx, indexID, fmt.Errorf("indexing panicked: %v", p))
			}
		}()

		if err := r.run(ctx, indexID, repoURL, branch); err != nil {
			log.Printf("indexing failed for %s: %v", indexID, err)
			r.fail(ctx, indexID, err)
		}
	}()
}

// run walks the job through its stages. Any error aborts the remaining
// stages; the caller records it as the terminal failed state.
func (r *Runner) run(ctx context.Context, indexID, repoURL, branch string) error {
	if err := r.setStatus(ctx, indexID, jobs.StatusCloning); err != nil {
		return err
	}
	dir := filepath.Join(r.checkoutRoot, indexID)
	if err := r.cloner.Clone(ctx, repoURL, branch, dir); err != nil {
		return err
	}

	if err := r.setStatus(ctx, indexID, jobs.StatusAnalyzingAST); err != nil {
		return err
	}
	chunks, err := r.analyzer.Analyze(dir, RepoName(repoURL), branch, indexID)
	if err != nil {
		return fmt.Errorf("analyzing checkout: %w", err)
	}

	if err := r.setStatus(ctx, indexID, jobs.StatusVectorizing); err != nil {
		return err
	}
	if err := r.vectorize(ctx, chunks); err != nil {
		return err
	}

	return r.setStatus(ctx, indexID, jobs.StatusCompleted)
}

// vectorize embeds chunk code in batches and upserts into the backend.
func (r *Runner) vectorize(ctx context.Context, chunks []vectorstore.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Code
		}
		vecs, err := r.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}

		if err := r.backend.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("storing embeddings: %w", err)
		}
	}
	return nil
}

func (r *Runner) setStatus(ctx context.Context, indexID string, status jobs.Status) error {
	return r.tracker.UpdateStatus(ctx, indexID, status, "")
}

// fail records the terminal failed state. The background task never lets an
// error escape; a rejected transition (job already terminal) is logged and
// dropped.
func (r *Runner) fail(ctx context.Context, indexID string, cause error) {
	if err := r.tracker.UpdateStatus(ctx, indexID, jobs.StatusFailed, cause.Error()); err != nil {
		log.Printf("recording failure for %s: %v", indexID, err)
	}
}
