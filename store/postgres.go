package store

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fabfab/docs-agent/embeddings"
)

const chunksTable = "rag_chunks"

// PostgresStore persists chunks in Postgres with pgvector similarity search.
// Selected with STORE_BACKEND=postgres; the schema is created on first use.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
	logger   *log.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, embedder embeddings.Embedder, dimension int, logger *log.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = log.Default()
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: create postgres pool: %v", ErrUnavailable, err)
	}

	if err := ensureSchema(ctx, pool, dimension); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", ErrUnavailable, err)
	}

	return &PostgresStore{pool: pool, embedder: embedder, logger: logger}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			kind TEXT NOT NULL,
			chunk_index INT NOT NULL,
			language TEXT,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, chunksTable, dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_kind ON %s(kind)", chunksTable, chunksTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING ivfflat (embedding vector_l2_ops)", chunksTable, chunksTable),
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	for i, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.New().String()
		}

		if _, err = tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, source, title, kind, chunk_index, language, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, chunksTable), id, chunk.Source, chunk.Title, string(chunk.Kind), chunk.Index, chunk.Metadata["language"], chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (s *PostgresStore) Search(ctx context.Context, query string, k int, kind Kind) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", k)
	}

	queryVectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire connection: %v", ErrUnavailable, err)
	}
	defer conn.Release()

	probes := k * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, fmt.Sprintf(`
		SELECT id, source, title, kind, chunk_index, language, content,
		       (embedding <-> $1::vector) AS distance
		FROM %s
		WHERE ($2 = '' OR kind = $2)
		ORDER BY embedding <-> $1::vector
		LIMIT $3
	`, chunksTable), pgvector.NewVector(queryVectors[0]), string(kind), k)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var (
			item     Chunk
			kindStr  string
			language *string
			title    *string
			distance float64
		)
		if scanErr := rows.Scan(&item.ID, &item.Source, &title, &kindStr, &item.Index, &language, &item.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		if title != nil {
			item.Title = *title
		}
		item.Kind = Kind(kindStr)
		if language != nil && *language != "" {
			item.Metadata = map[string]string{"language": *language}
		}
		results = append(results, Result{Chunk: item, Similarity: float32(1 / (1 + distance))})
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var count int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", chunksTable)).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("%w: count chunks: %v", ErrUnavailable, err)
	}
	return Stats{TotalChunks: count, Collection: chunksTable}, nil
}

var _ Store = (*PostgresStore)(nil)
