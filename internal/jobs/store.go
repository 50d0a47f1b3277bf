package jobs

import (
	"context"
	"fmt"

	"codemind/internal/config"
	"codemind/internal/db"
)

// MetadataStore persists and queries indexing-job records. Implementations
// do not validate status transitions; that responsibility belongs to the
// Tracker, which checks the transition table before calling the store.
type MetadataStore interface {
	// CreateJob inserts a new record with status started. It returns
	// ErrJobExists if the index_id is already taken.
	CreateJob(ctx context.Context, indexID, repoURL, branch, namespace string) error

	// UpdateStatus writes the new status, and the error text if non-empty.
	UpdateStatus(ctx context.Context, indexID string, status Status, errMsg string) error

	// GetJob returns the job, or nil if absent.
	GetJob(ctx context.Context, indexID string) (*Job, error)

	// ListActivity returns jobs most-recent-first, bounded by limit.
	ListActivity(ctx context.Context, limit int) ([]Job, error)

	// ListLive returns jobs currently in a non-terminal state.
	ListLive(ctx context.Context) ([]Job, error)

	// ListIndexedRepos returns the most recent job per distinct
	// (repo, branch, namespace) group.
	ListIndexedRepos(ctx context.Context) ([]RepoSummary, error)

	// GetCounts returns the aggregate indexing metrics.
	GetCounts(ctx context.Context) (Counts, error)

	// ResetAll irrecoverably clears all job records.
	ResetAll(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

// FromConfig constructs the metadata store selected by the configuration.
func FromConfig(cfg *config.Config) (MetadataStore, error) {
	switch cfg.MetadataStore {
	case config.MetadataSQLite:
		database, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite metadata store: %w", err)
		}
		return NewSQLiteStore(database), nil
	case config.MetadataPostgres:
		return NewPostgresStore(cfg.DatabaseURL)
	case config.MetadataMongo:
		return NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown metadata store %q", cfg.MetadataStore)
	}
}
