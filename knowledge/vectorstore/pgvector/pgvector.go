// Package pgvector provides a PostgreSQL-backed vectorstore.Store using the
// pgvector extension for persistent, ACID-compliant knowledge chunk storage
// and cosine-distance nearest-neighbor search.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
)

// Store is a pgvector-backed vectorstore.Store implementation.
type Store struct {
	db        *sql.DB
	tableName string
	dim       int
}

// Config configures a Store.
type Config struct {
	DSN          string
	TableName    string
	EmbeddingDim int
}

const defaultTableName = "knowledge_chunks"

// New connects to PostgreSQL and ensures the backing table and extension exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	const op = "vectorstore.pgvector.New"
	tableName := cfg.TableName
	if tableName == "" {
		tableName = defaultTableName
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, errs.New(op, errs.Validation, "embedding dimension must be positive")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(op, errs.UpstreamTransient, err)
	}

	s := &Store{db: db, tableName: tableName, dim: cfg.EmbeddingDim}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;
	CREATE TABLE IF NOT EXISTS %s (
		agent_id TEXT NOT NULL,
		source_doc_id TEXT NOT NULL,
		ordinal INT NOT NULL,
		content TEXT NOT NULL,
		embedding VECTOR(%d) NOT NULL,
		PRIMARY KEY (agent_id, source_doc_id, ordinal)
	);
	CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_cosine_ops);
	`, s.tableName, s.dim, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errs.Wrap("vectorstore.pgvector.ensureSchema", errs.Internal, err)
	}
	return nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(ctx context.Context, chunk domain.KnowledgeChunk) error {
	const op = "vectorstore.pgvector.Upsert"
	if len(chunk.Embedding) != s.dim {
		return errs.New(op, errs.Validation, fmt.Sprintf("embedding dimension %d does not match store dimension %d", len(chunk.Embedding), s.dim))
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (agent_id, source_doc_id, ordinal, content, embedding)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (agent_id, source_doc_id, ordinal)
	DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query, chunk.AgentID, chunk.SourceDocID, chunk.Ordinal, chunk.Text, pgv.NewVector(chunk.Embedding))
	if err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return nil
}

// Query implements vectorstore.Store using the cosine-distance operator.
// pgvector's <=> operator returns cosine DISTANCE (0 = identical), which this
// converts to a similarity score via 1 - distance.
func (s *Store) Query(ctx context.Context, agentID string, queryEmbedding []float32, topK int, minScore float64) ([]domain.RetrievedChunk, error) {
	const op = "vectorstore.pgvector.Query"
	if topK <= 0 {
		return nil, errs.New(op, errs.Validation, "topK must be greater than 0")
	}
	if len(queryEmbedding) != s.dim {
		return nil, errs.New(op, errs.Validation, fmt.Sprintf("query embedding dimension %d does not match store dimension %d", len(queryEmbedding), s.dim))
	}

	query := fmt.Sprintf(`
	SELECT content, source_doc_id, ordinal, 1 - (embedding <=> $1) AS score
	FROM %s
	WHERE agent_id = $2
	ORDER BY embedding <=> $1
	LIMIT $3
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, pgv.NewVector(queryEmbedding), agentID, topK)
	if err != nil {
		return nil, errs.Wrap(op, errs.UpstreamTransient, err)
	}
	defer rows.Close()

	var out []domain.RetrievedChunk
	for rows.Next() {
		var rc domain.RetrievedChunk
		if err := rows.Scan(&rc.Text, &rc.Source, &rc.Ordinal, &rc.Score); err != nil {
			return nil, errs.Wrap(op, errs.Internal, err)
		}
		if rc.Score >= minScore {
			out = append(out, rc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	return out, nil
}

// DeleteSource implements vectorstore.Store.
func (s *Store) DeleteSource(ctx context.Context, agentID, sourceDocID string) error {
	const op = "vectorstore.pgvector.DeleteSource"
	query := fmt.Sprintf(`DELETE FROM %s WHERE agent_id = $1 AND source_doc_id = $2`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, agentID, sourceDocID); err != nil {
		return errs.Wrap(op, errs.Internal, err)
	}
	return nil
}

// Close releases the underlying database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
