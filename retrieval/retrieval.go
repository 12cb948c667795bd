// Package retrieval runs the per-tool-invocation search pipeline: reformulate,
// fan out and merge, rerank, assess confidence, route, format. One orchestrator
// run serves one logical query against one filtered slice of the corpus;
// concurrent runs share nothing.
package retrieval

import (
	"context"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// SearchRequest is the single RPC-style call the external search collaborator
// exposes. The engine is expected to fuse its own full-text and vector scoring
// internally; SimilarityScore may be absent on lexical-only matches.
type SearchRequest struct {
	QueryText      string
	QueryEmbedding []float32
	MatchCount     int
	Category       knowledge.DocumentType
	Modality       string
	Jurisdiction   string
	FullTextWeight float64
	SemanticWeight float64
	// RRFK tunes the engine's internal rank fusion constant.
	RRFK int
}

// Searcher is the external search collaborator.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]knowledge.ScoredChunk, error)
}

// Embedder is the external embedding collaborator. Vectors are fixed at 512
// dimensions; the dimension must match the corpus embedding dimension exactly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reformulator expands a query into variants. Implementations never fail;
// they degrade to the original query.
type Reformulator interface {
	Reformulate(ctx context.Context, query, category, modality string) []string
}
