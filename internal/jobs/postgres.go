package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the relational metadata store. Like the vector store,
// it builds its connection pool lazily, once, on first use.
type PostgresStore struct {
	url string

	once    sync.Once
	pool    *pgxpool.Pool
	poolErr error
}

// NewPostgresStore validates the connection string and returns a store.
func NewPostgresStore(url string) (*PostgresStore, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres metadata store: database_url is required")
	}
	return &PostgresStore{url: url}, nil
}

func (s *PostgresStore) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	s.once.Do(func() {
		pool, err := pgxpool.New(ctx, s.url)
		if err != nil {
			s.poolErr = fmt.Errorf("creating pgx pool: %w", err)
			return
		}
		_, err = pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS indexing_status (
				index_id   TEXT PRIMARY KEY,
				namespace  TEXT NOT NULL DEFAULT 'default',
				repo_url   TEXT NOT NULL,
				branch     TEXT NOT NULL,
				status     TEXT NOT NULL,
				error      TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_indexing_status_created ON indexing_status(created_at);
		`)
		if err != nil {
			pool.Close()
			s.poolErr = fmt.Errorf("ensuring indexing_status schema: %w", err)
			return
		}
		s.pool = pool
	})
	return s.pool, s.poolErr
}

func (s *PostgresStore) CreateJob(ctx context.Context, indexID, repoURL, branch, namespace string) error {
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO indexing_status (index_id, namespace, repo_url, branch, status)
		VALUES ($1, $2, $3, $4, $5)`,
		indexID, namespace, repoURL, branch, string(StatusStarted))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("index_id %s: %w", indexID, ErrJobExists)
		}
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, indexID string, status Status, errMsg string) error {
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}
	if errMsg != "" {
		_, err = pool.Exec(ctx,
			"UPDATE indexing_status SET status = $1, error = $2 WHERE index_id = $3",
			string(status), errMsg, indexID)
	} else {
		_, err = pool.Exec(ctx,
			"UPDATE indexing_status SET status = $1 WHERE index_id = $2",
			string(status), indexID)
	}
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, indexID string) (*Job, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, err
	}
	row := pool.QueryRow(ctx, `
		SELECT index_id, namespace, repo_url, branch, status, COALESCE(error, ''), created_at
		FROM indexing_status WHERE index_id = $1`, indexID)

	job, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func (s *PostgresStore) ListActivity(ctx context.Context, limit int) ([]Job, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT index_id, namespace, repo_url, branch, status, COALESCE(error, ''), created_at
		FROM indexing_status
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()
	return collectPgJobs(rows)
}

func (s *PostgresStore) ListLive(ctx context.Context) ([]Job, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT index_id, namespace, repo_url, branch, status, COALESCE(error, ''), created_at
		FROM indexing_status
		WHERE status = ANY($1)
		ORDER BY created_at DESC`,
		[]string{string(StatusStarted), string(StatusCloning), string(StatusAnalyzingAST), string(StatusVectorizing)})
	if err != nil {
		return nil, fmt.Errorf("querying live jobs: %w", err)
	}
	defer rows.Close()
	return collectPgJobs(rows)
}

func (s *PostgresStore) ListIndexedRepos(ctx context.Context) ([]RepoSummary, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT ON (namespace, repo_url, branch) repo_url, branch, namespace, status, created_at
		FROM indexing_status
		ORDER BY namespace, repo_url, branch, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying indexed repos: %w", err)
	}
	defer rows.Close()

	var repos []RepoSummary
	for rows.Next() {
		var (
			r      RepoSummary
			status string
		)
		if err := rows.Scan(&r.RepoURL, &r.Branch, &r.Namespace, &status, &r.LastUpdated); err != nil {
			return nil, fmt.Errorf("scanning repo summary: %w", err)
		}
		r.Status = Status(status)
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *PostgresStore) GetCounts(ctx context.Context) (Counts, error) {
	var counts Counts
	pool, err := s.getPool(ctx)
	if err != nil {
		return counts, err
	}
	err = pool.QueryRow(ctx,
		"SELECT COUNT(DISTINCT repo_url) FROM indexing_status WHERE status = $1",
		string(StatusCompleted)).Scan(&counts.DistinctCompletedRepos)
	if err != nil {
		return counts, fmt.Errorf("counting completed repos: %w", err)
	}
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM indexing_status WHERE status = $1",
		string(StatusCompleted)).Scan(&counts.TotalCompletedRuns)
	if err != nil {
		return counts, fmt.Errorf("counting completed runs: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) ResetAll(ctx context.Context) error {
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "TRUNCATE TABLE indexing_status"); err != nil {
		return fmt.Errorf("clearing job records: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanPgJob(row pgx.Row) (*Job, error) {
	var (
		j      Job
		status string
	)
	if err := row.Scan(&j.IndexID, &j.Namespace, &j.RepoURL, &j.Branch, &status, &j.Error, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Status = Status(status)
	return &j, nil
}

func collectPgJobs(rows pgx.Rows) ([]Job, error) {
	var jobsList []Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobsList = append(jobsList, *j)
	}
	return jobsList, rows.Err()
}
