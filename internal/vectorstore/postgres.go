package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore searches code embeddings with pgvector's cosine distance
// operator. One process-wide pool is built lazily on first use and reused
// for the process lifetime.
type PostgresStore struct {
	url        string
	dimensions int

	once    sync.Once
	pool    *pgxpool.Pool
	poolErr error
}

// NewPostgresStore validates the connection string and returns a store.
// The pool itself is not dialed until the first operation.
func NewPostgresStore(url string, dimensions int) (*PostgresStore, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres vector store: database_url is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("postgres vector store: invalid embedding dimensions %d", dimensions)
	}
	return &PostgresStore{url: url, dimensions: dimensions}, nil
}

func (s *PostgresStore) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	s.once.Do(func() {
		pool, err := pgxpool.New(ctx, s.url)
		if err != nil {
			s.poolErr = fmt.Errorf("creating pgx pool: %w", err)
			return
		}
		if err := ensureVectorSchema(ctx, pool, s.dimensions); err != nil {
			pool.Close()
			s.poolErr = err
			return
		}
		s.pool = pool
	})
	return s.pool, s.poolErr
}

func ensureVectorSchema(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	ddl := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS code_embeddings (
			filename     TEXT NOT NULL,
			location     TEXT NOT NULL,
			language     TEXT NOT NULL DEFAULT '',
			start_line   INTEGER NOT NULL DEFAULT 0,
			end_line     INTEGER NOT NULL DEFAULT 0,
			code         TEXT NOT NULL DEFAULT '',
			symbols      TEXT[] NOT NULL DEFAULT '{}',
			calls        TEXT[] NOT NULL DEFAULT '{}',
			repo         TEXT NOT NULL DEFAULT '',
			branch       TEXT NOT NULL DEFAULT '',
			index_run_id TEXT NOT NULL DEFAULT '',
			embedding    vector(%d) NOT NULL,
			PRIMARY KEY (filename, location)
		);
		CREATE INDEX IF NOT EXISTS idx_code_embeddings_repo ON code_embeddings(repo, branch);
	`, dimensions)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring code_embeddings schema: %w", err)
	}
	return nil
}

// vectorLiteral renders a float32 slice in pgvector's input syntax.
func vectorLiteral(vec []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (s *PostgresStore) Search(ctx context.Context, queryVec []float32, repo, branch string, k int) ([]Candidate, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, err
	}

	args := []any{vectorLiteral(queryVec)}
	var where []string
	if repo != "" {
		args = append(args, repo)
		where = append(where, fmt.Sprintf("repo = $%d", len(args)))
	}
	if branch != "" {
		args = append(args, branch)
		where = append(where, fmt.Sprintf("branch = $%d", len(args)))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, k)

	sql := fmt.Sprintf(`
		SELECT filename, language, code, start_line, end_line, symbols, calls, repo, branch,
		       embedding <=> $1::vector AS distance
		FROM code_embeddings %s
		ORDER BY distance
		LIMIT $%d`, whereSQL, len(args))

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(
			&c.Filename, &c.Language, &c.Code, &c.StartLine, &c.EndLine,
			&c.Symbols, &c.Calls, &c.Repo, &c.Branch, &c.Distance,
		); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		c.Similarity = 1.0 - c.Distance
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO code_embeddings
				(filename, location, language, start_line, end_line, code, symbols, calls, repo, branch, index_run_id, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::vector)
			ON CONFLICT (filename, location) DO UPDATE SET
				language = EXCLUDED.language,
				start_line = EXCLUDED.start_line,
				end_line = EXCLUDED.end_line,
				code = EXCLUDED.code,
				symbols = EXCLUDED.symbols,
				calls = EXCLUDED.calls,
				repo = EXCLUDED.repo,
				branch = EXCLUDED.branch,
				index_run_id = EXCLUDED.index_run_id,
				embedding = EXCLUDED.embedding`,
			c.Filename, c.Location, c.Language, c.StartLine, c.EndLine, c.Code,
			c.Symbols, c.Calls, c.Repo, c.Branch, c.IndexRunID, vectorLiteral(c.Embedding),
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting chunk: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM code_embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	pool, err := s.getPool(ctx)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "TRUNCATE TABLE code_embeddings"); err != nil {
		return fmt.Errorf("truncating code_embeddings: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
