package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codemind/internal/db"
)

// sqliteTimeLayout is fixed-width so lexicographic comparison of stored
// timestamps matches chronological order. RFC3339Nano trims trailing
// zeros and would break MAX(created_at).
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the embedded metadata store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a store backed by the given database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) CreateJob(ctx context.Context, indexID, repoURL, branch, namespace string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM indexing_status WHERE index_id = ?)", indexID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking job existence: %w", err)
	}
	if exists {
		return fmt.Errorf("index_id %s: %w", indexID, ErrJobExists)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO indexing_status (index_id, namespace, repo_url, branch, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		indexID, namespace, repoURL, branch, string(StatusStarted),
		time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, indexID string, status Status, errMsg string) error {
	var err error
	if errMsg != "" {
		_, err = s.db.ExecContext(ctx,
			"UPDATE indexing_status SET status = ?, error = ? WHERE index_id = ?",
			string(status), errMsg, indexID)
	} else {
		_, err = s.db.ExecContext(ctx,
			"UPDATE indexing_status SET status = ? WHERE index_id = ?",
			string(status), indexID)
	}
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, indexID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT index_id, namespace, repo_url, branch, status, error, created_at
		FROM indexing_status WHERE index_id = ?`, indexID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT index_id, namespace, repo_url, branch, status, error, created_at
		FROM indexing_status
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *SQLiteStore) ListLive(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT index_id, namespace, repo_url, branch, status, error, created_at
		FROM indexing_status
		WHERE status IN (?, ?, ?, ?)
		ORDER BY created_at DESC, rowid DESC`,
		string(StatusStarted), string(StatusCloning), string(StatusAnalyzingAST), string(StatusVectorizing))
	if err != nil {
		return nil, fmt.Errorf("querying live jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *SQLiteStore) ListIndexedRepos(ctx context.Context) ([]RepoSummary, error) {
	// Groupwise max: the row carrying each group's latest created_at.
	rows, err := s.db.QueryContext(ctx, `
		SELECT t1.repo_url, t1.branch, t1.namespace, t1.status, t1.created_at
		FROM indexing_status t1
		WHERE t1.created_at = (
			SELECT MAX(t2.created_at)
			FROM indexing_status t2
			WHERE t2.repo_url = t1.repo_url AND t2.branch = t1.branch AND t2.namespace = t1.namespace
		)
		ORDER BY t1.namespace, t1.repo_url, t1.branch`)
	if err != nil {
		return nil, fmt.Errorf("querying indexed repos: %w", err)
	}
	defer rows.Close()

	var repos []RepoSummary
	for rows.Next() {
		var (
			r      RepoSummary
			status string
			ts     string
		)
		if err := rows.Scan(&r.RepoURL, &r.Branch, &r.Namespace, &status, &ts); err != nil {
			return nil, fmt.Errorf("scanning repo summary: %w", err)
		}
		r.Status = Status(status)
		r.LastUpdated, _ = time.Parse(time.RFC3339Nano, ts)
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *SQLiteStore) GetCounts(ctx context.Context) (Counts, error) {
	var counts Counts
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT repo_url) FROM indexing_status WHERE status = ?",
		string(StatusCompleted)).Scan(&counts.DistinctCompletedRepos)
	if err != nil {
		return counts, fmt.Errorf("counting completed repos: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM indexing_status WHERE status = ?",
		string(StatusCompleted)).Scan(&counts.TotalCompletedRuns)
	if err != nil {
		return counts, fmt.Errorf("counting completed runs: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) ResetAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM indexing_status"); err != nil {
		return fmt.Errorf("clearing job records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*Job, error) {
	var (
		j      Job
		status string
		errMsg sql.NullString
		ts     string
	)
	if err := sc.Scan(&j.IndexID, &j.Namespace, &j.RepoURL, &j.Branch, &status, &errMsg, &ts); err != nil {
		return nil, err
	}
	j.Status = Status(status)
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]Job, error) {
	var jobsList []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobsList = append(jobsList, *j)
	}
	return jobsList, rows.Err()
}
