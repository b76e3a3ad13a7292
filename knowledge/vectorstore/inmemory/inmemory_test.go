package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/domain"
)

func chunk(agentID, sourceDocID string, ordinal int, text string, emb []float32) domain.KnowledgeChunk {
	return domain.KnowledgeChunk{AgentID: agentID, Text: text, Embedding: emb, SourceDocID: sourceDocID, Ordinal: ordinal}
}

func TestUpsertAndQueryReturnsBestMatch(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 0, "refund policy is 30 days", []float32{1, 0, 0})))
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 1, "office hours are 9 to 5", []float32{0, 1, 0})))

	results, err := s.Query(ctx, "agent-1", []float32{1, 0, 0}, 1, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "refund policy is 30 days", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
}

func TestQueryRespectsMinScore(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 0, "unrelated", []float32{0, 1, 0})))

	results, err := s.Query(ctx, "agent-1", []float32{1, 0, 0}, 5, 0.9)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryScopedPerAgent(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 0, "agent one chunk", []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, chunk("agent-2", "doc-1", 0, "agent two chunk", []float32{1, 0})))

	results, err := s.Query(ctx, "agent-1", []float32{1, 0}, 5, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "agent one chunk", results[0].Text)
}

func TestUpsertReplacesSameOrdinal(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 0, "old text", []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 0, "new text", []float32{1, 0})))

	results, err := s.Query(ctx, "agent-1", []float32{1, 0}, 5, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new text", results[0].Text)
}

func TestDeleteSourceRemovesChunks(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-1", 0, "a", []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, chunk("agent-1", "doc-2", 0, "b", []float32{1, 0})))

	require.NoError(t, s.DeleteSource(ctx, "agent-1", "doc-1"))

	results, err := s.Query(ctx, "agent-1", []float32{1, 0}, 5, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Text)
}

func TestQueryRejectsNonPositiveTopK(t *testing.T) {
	s := New()
	_, err := s.Query(context.Background(), "agent-1", []float32{1, 0}, 0, 0.0)
	assert.Error(t, err)
}
