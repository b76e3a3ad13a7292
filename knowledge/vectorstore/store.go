// Package vectorstore defines the storage contract for agent knowledge
// chunks and their embeddings, with in-memory and PostgreSQL/pgvector
// implementations.
package vectorstore

import (
	"context"

	"github.com/callwave/callwave/domain"
)

// Store persists knowledge chunks per agent and serves nearest-neighbor
// queries over their embeddings.
type Store interface {
	// Upsert stores or replaces a knowledge chunk.
	Upsert(ctx context.Context, chunk domain.KnowledgeChunk) error

	// Query returns the topK chunks for agentID most similar to
	// queryEmbedding, filtered to those scoring at least minScore.
	// Results are ordered by descending score.
	Query(ctx context.Context, agentID string, queryEmbedding []float32, topK int, minScore float64) ([]domain.RetrievedChunk, error)

	// DeleteSource removes every chunk belonging to sourceDocID for agentID.
	DeleteSource(ctx context.Context, agentID, sourceDocID string) error
}
