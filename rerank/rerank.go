// Package rerank applies optional cross-encoder re-scoring to a merged result
// set. Reranking is doubly gated: a feature flag must be on and a client with
// a credential must be configured. Missing either is passthrough, not an error.
package rerank

import (
	"context"
	"log/slog"
	"sync"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
)

// Ranking is one cross-encoder judgement: which input document, how relevant.
type Ranking struct {
	OriginalIndex int
	Score         float64
}

// Client is the reranking collaborator: given a query and document texts, it
// returns a relevance-ordered ranking capped at topN.
type Client interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]Ranking, error)
}

// Result is the reranked (or passed-through) result set.
type Result struct {
	Results     []knowledge.ScoredChunk
	WasReranked bool
}

// Reranker gates and applies cross-encoder reranking. The missing-credential
// warning fires once per Reranker value rather than once per process, so tests
// get a fresh flag with every instance.
type Reranker struct {
	client  Client
	enabled bool
	logger  *slog.Logger

	mu            sync.Mutex
	warnedMissing bool
}

// Option customises the reranker.
type Option func(*Reranker)

// WithEnabled toggles the reranking feature flag.
func WithEnabled(enabled bool) Option {
	return func(r *Reranker) {
		r.enabled = enabled
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reranker) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a reranker. A nil client means no credential is configured and
// every call passes through.
func New(client Client, opts ...Option) *Reranker {
	r := &Reranker{
		client: client,
		logger: logging.WithComponent("rerank"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank re-scores results with the cross-encoder, rebuilding the list in
// relevance order and overwriting each chunk's similarity with the
// cross-encoder score. Every failure path degrades to passthrough; this stage
// never propagates an error into the pipeline.
func (r *Reranker) Rerank(ctx context.Context, query string, results []knowledge.ScoredChunk, topN int) Result {
	passthrough := Result{Results: results}
	if !r.enabled || len(results) == 0 {
		return passthrough
	}
	if r.client == nil {
		r.warnMissingOnce()
		return passthrough
	}

	documents := make([]string, len(results))
	for i, chunk := range results {
		documents[i] = chunk.Content
	}

	rankings, err := r.client.Rerank(ctx, query, documents, topN)
	if err != nil {
		r.logger.Warn("reranking failed, keeping fused order", "error", err)
		return passthrough
	}
	if len(rankings) == 0 {
		return passthrough
	}

	reranked := make([]knowledge.ScoredChunk, 0, len(rankings))
	for _, ranking := range rankings {
		if ranking.OriginalIndex < 0 || ranking.OriginalIndex >= len(results) {
			r.logger.Warn("reranker returned out-of-range index, keeping fused order", "index", ranking.OriginalIndex)
			return passthrough
		}
		reranked = append(reranked, results[ranking.OriginalIndex].WithSimilarity(ranking.Score))
	}
	return Result{Results: reranked, WasReranked: true}
}

func (r *Reranker) warnMissingOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.warnedMissing {
		return
	}
	r.warnedMissing = true
	r.logger.Warn("reranking enabled but no reranker client configured, passing results through")
}
