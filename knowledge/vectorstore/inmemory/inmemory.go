// Package inmemory provides an in-process Store suitable for development
// and small knowledge bases, with cosine-similarity search over a flat
// per-agent slice of chunks.
package inmemory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/callwave/callwave/domain"
)

// Store is an in-memory vectorstore.Store implementation.
type Store struct {
	mu     sync.RWMutex
	chunks map[string][]domain.KnowledgeChunk // keyed by agentID
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{chunks: make(map[string][]domain.KnowledgeChunk)}
}

// Upsert stores or replaces a chunk, matched by agentID + SourceDocID + Ordinal.
func (s *Store) Upsert(ctx context.Context, chunk domain.KnowledgeChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.chunks[chunk.AgentID]
	for i, c := range existing {
		if c.SourceDocID == chunk.SourceDocID && c.Ordinal == chunk.Ordinal {
			existing[i] = chunk
			return nil
		}
	}
	s.chunks[chunk.AgentID] = append(existing, chunk)
	return nil
}

// Query performs a brute-force cosine-similarity search over the agent's chunks.
func (s *Store) Query(ctx context.Context, agentID string, queryEmbedding []float32, topK int, minScore float64) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, errors.New("vectorstore: topK must be greater than 0")
	}

	s.mu.RLock()
	chunks := append([]domain.KnowledgeChunk(nil), s.chunks[agentID]...)
	s.mu.RUnlock()

	type scored struct {
		chunk domain.KnowledgeChunk
		score float64
	}
	results := make([]scored, 0, len(chunks))
	for _, c := range chunks {
		score, err := cosineSimilarity(queryEmbedding, c.Embedding)
		if err != nil {
			continue
		}
		if score >= minScore {
			results = append(results, scored{chunk: c, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]domain.RetrievedChunk, len(results))
	for i, r := range results {
		out[i] = domain.RetrievedChunk{
			Text:    r.chunk.Text,
			Score:   r.score,
			Source:  r.chunk.SourceDocID,
			Ordinal: r.chunk.Ordinal,
		}
	}
	return out, nil
}

// DeleteSource removes every chunk for sourceDocID within agentID.
func (s *Store) DeleteSource(ctx context.Context, agentID, sourceDocID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.chunks[agentID]
	filtered := existing[:0]
	for _, c := range existing {
		if c.SourceDocID != sourceDocID {
			filtered = append(filtered, c)
		}
	}
	s.chunks[agentID] = filtered
	return nil
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, errors.New("vectorstore: vector length mismatch")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, errors.New("vectorstore: zero-norm vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
