package jobs

import (
	"context"
	"fmt"
)

// Tracker is a thin façade over a MetadataStore that enforces the status
// transition table and namespacing. It is the only component allowed to
// reject a status write; stores record whatever the tracker passes through.
type Tracker struct {
	store MetadataStore
}

// NewTracker creates a tracker over the given store.
func NewTracker(store MetadataStore) *Tracker {
	return &Tracker{store: store}
}

// CreateJob records a new indexing attempt with status started. An empty
// namespace falls back to the default workspace.
func (t *Tracker) CreateJob(ctx context.Context, indexID, repoURL, branch, namespace string) error {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return t.store.CreateJob(ctx, indexID, repoURL, branch, namespace)
}

// UpdateStatus writes a status transition after validating it against the
// transition table. Writes out of a terminal state, or skipping stages,
// return ErrIllegalTransition and leave the store untouched.
func (t *Tracker) UpdateStatus(ctx context.Context, indexID string, status Status, errMsg string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q: %w", status, ErrIllegalTransition)
	}

	job, err := t.store.GetJob(ctx, indexID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("index_id %s: %w", indexID, ErrJobNotFound)
	}
	if !CanTransition(job.Status, status) {
		return fmt.Errorf("%s -> %s for %s: %w", job.Status, status, indexID, ErrIllegalTransition)
	}

	return t.store.UpdateStatus(ctx, indexID, status, errMsg)
}

// GetJob returns the job, or nil if absent.
func (t *Tracker) GetJob(ctx context.Context, indexID string) (*Job, error) {
	return t.store.GetJob(ctx, indexID)
}

// ListActivity returns jobs most-recent-first, bounded by limit.
func (t *Tracker) ListActivity(ctx context.Context, limit int) ([]Job, error) {
	return t.store.ListActivity(ctx, limit)
}

// ListLive returns jobs currently in a non-terminal state.
func (t *Tracker) ListLive(ctx context.Context) ([]Job, error) {
	return t.store.ListLive(ctx)
}

// ListIndexedRepos returns the latest job per (repo, branch, namespace).
func (t *Tracker) ListIndexedRepos(ctx context.Context) ([]RepoSummary, error) {
	return t.store.ListIndexedRepos(ctx)
}

// GetCounts returns the aggregate indexing metrics.
func (t *Tracker) GetCounts(ctx context.Context) (Counts, error) {
	return t.store.GetCounts(ctx)
}

// ResetAll irrecoverably clears all job records.
func (t *Tracker) ResetAll(ctx context.Context) error {
	return t.store.ResetAll(ctx)
}
