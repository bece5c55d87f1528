// Package pgvector stores chunk embeddings in PostgreSQL with the pgvector
// extension. It is an alternative backend to the managed Pinecone index for
// deployments that already run Postgres.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lexgrove/caselaw-search/internal/core/domain"
	"github.com/lexgrove/caselaw-search/internal/infrastructure/resilience"
)

const schemaLockKey = int64(2026082901)

type Store struct {
	db       *sql.DB
	executor *resilience.Executor
}

func New(db *sql.DB, executor *resilience.Executor) *Store {
	return &Store{db: db, executor: executor}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureIndex creates the extension, table and ANN index if absent. The
// embedding column is dimensioned at bootstrap, so changing the embedding
// model requires a new table.
func (s *Store) EnsureIndex(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "ensure index",
			fmt.Errorf("embedding dimension must be positive, got %d", dimension))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapProviderError("begin schema tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return wrapProviderError("acquire schema lock", err)
	}

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunk_vectors (
	id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_chunk_vectors_embedding
	ON chunk_vectors USING hnsw (embedding vector_cosine_ops);
`, dimension)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return wrapProviderError("execute schema ddl", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapProviderError("commit schema tx", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.execute(ctx, "pgvector.exists", func(callCtx context.Context) error {
		row := s.db.QueryRowContext(callCtx,
			`SELECT EXISTS (SELECT 1 FROM chunk_vectors WHERE id = $1)`, id)
		return row.Scan(&found)
	})
	if err != nil {
		return false, wrapProviderError("check vector", err)
	}
	return found, nil
}

func (s *Store) Upsert(ctx context.Context, vectors []domain.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	err := s.execute(ctx, "pgvector.upsert", func(callCtx context.Context) error {
		tx, err := s.db.BeginTx(callCtx, nil)
		if err != nil {
			return fmt.Errorf("begin upsert tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		for _, vector := range vectors {
			metaJSON, err := json.Marshal(vector.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			_, err = tx.ExecContext(callCtx, `
INSERT INTO chunk_vectors (id, embedding, metadata)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
`, vector.ID, encodeVector(vector.Values), metaJSON)
			if err != nil {
				return fmt.Errorf("upsert vector %s: %w", vector.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit upsert tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return wrapProviderError("upsert vectors", err)
	}
	return nil
}

// Query ranks by cosine distance; similarity is reported as 1 - distance to
// match the score range of the managed backend.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	err := s.execute(ctx, "pgvector.query", func(callCtx context.Context) error {
		rows, err := s.db.QueryContext(callCtx, `
SELECT metadata, 1 - (embedding <=> $1) AS similarity
FROM chunk_vectors
ORDER BY embedding <=> $1
LIMIT $2
`, encodeVector(vector), topK)
		if err != nil {
			return fmt.Errorf("query vectors: %w", err)
		}
		defer rows.Close()

		results = results[:0]
		for rows.Next() {
			var metaRaw []byte
			var score float64
			if err := rows.Scan(&metaRaw, &score); err != nil {
				return fmt.Errorf("scan match: %w", err)
			}
			meta := map[string]string{}
			if err := json.Unmarshal(metaRaw, &meta); err != nil {
				return fmt.Errorf("unmarshal metadata: %w", err)
			}
			results = append(results, domain.ResultFromMetadata(meta, score))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, wrapProviderError("query index", err)
	}
	return results, nil
}

func (s *Store) DescribeStats(ctx context.Context) (domain.IndexStats, error) {
	var count int64
	err := s.execute(ctx, "pgvector.stats", func(callCtx context.Context) error {
		row := s.db.QueryRowContext(callCtx, `SELECT count(*) FROM chunk_vectors`)
		return row.Scan(&count)
	})
	if err != nil {
		return domain.IndexStats{}, wrapProviderError("describe index stats", err)
	}
	// A Postgres table has no fullness notion; only the count is meaningful.
	return domain.IndexStats{TotalVectorCount: count}, nil
}

func (s *Store) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if s.executor == nil {
		return call(ctx)
	}
	return s.executor.Execute(ctx, operation, call, classifyStoreError)
}

// encodeVector renders the pgvector text literal, e.g. "[0.1,0.2]".
func encodeVector(values []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func classifyStoreError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	// Connection-level failures are worth a retry; constraint and encoding
	// errors are not, and database/sql does not expose them uniformly, so
	// retries stay conservative.
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func wrapProviderError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.WrapError(domain.ErrProvider, operation, err)
}
