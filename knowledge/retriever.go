// Package knowledge implements retrieval-augmented grounding for an agent's
// conversation turns: embedding the caller's utterance and pulling the most
// relevant knowledge chunks for the agent's knowledge base.
package knowledge

import (
	"context"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/knowledge/vectorstore"
)

// Retriever embeds a query and retrieves the top-scoring knowledge chunks
// for a given agent.
type Retriever struct {
	embedder iface.Embedder
	store    vectorstore.Store
	topK     int
	minScore float64
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK overrides the default result count.
func WithTopK(k int) Option {
	return func(r *Retriever) { r.topK = k }
}

// WithMinScore overrides the default similarity floor.
func WithMinScore(minScore float64) Option {
	return func(r *Retriever) { r.minScore = minScore }
}

const (
	defaultTopK     = 5
	defaultMinScore = 0.70
)

// NewRetriever constructs a Retriever over the given embedder and store.
func NewRetriever(embedder iface.Embedder, store vectorstore.Store, opts ...Option) *Retriever {
	r := &Retriever{embedder: embedder, store: store, topK: defaultTopK, minScore: defaultMinScore}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve embeds query and returns the agent's most relevant chunks, most
// relevant first. An empty result is not an error — it means nothing in the
// knowledge base clears minScore.
func (r *Retriever) Retrieve(ctx context.Context, agentID, query string) ([]domain.RetrievedChunk, error) {
	const op = "knowledge.Retrieve"

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(embedding) != r.embedder.Dimension() {
		return nil, errs.New(op, errs.Internal, "embedder returned a vector of unexpected dimension")
	}

	chunks, err := r.store.Query(ctx, agentID, embedding, r.topK, r.minScore)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Ingest embeds and upserts a document's chunks into the store.
func (r *Retriever) Ingest(ctx context.Context, agentID, sourceDocID string, texts []string) error {
	for ordinal, text := range texts {
		embedding, err := r.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		chunk := domain.KnowledgeChunk{
			AgentID:     agentID,
			Text:        text,
			Embedding:   embedding,
			SourceDocID: sourceDocID,
			Ordinal:     ordinal,
		}
		if err := r.store.Upsert(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}
