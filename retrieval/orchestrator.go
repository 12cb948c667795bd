package retrieval

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thomassleeman/therapy-app-sub000/confidence"
	"github.com/thomassleeman/therapy-app-sub000/devlog"
	"github.com/thomassleeman/therapy-app-sub000/fusion"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
	"github.com/thomassleeman/therapy-app-sub000/pkg/telemetry"
	"github.com/thomassleeman/therapy-app-sub000/promptctx"
	"github.com/thomassleeman/therapy-app-sub000/rerank"
)

// SearchUnavailableNote is surfaced when the search collaborator itself fails;
// the pipeline must still answer with a visible qualification.
const SearchUnavailableNote = "The knowledge base could not be searched for this query."

// Request describes one orchestrator invocation.
type Request struct {
	Query        string
	Category     knowledge.DocumentType
	Modality     string
	Jurisdiction string
	// SensitiveCategories come from the safety detector and gate the routing
	// decision; the orchestrator does not re-run detection.
	SensitiveCategories []string
}

// Payload is the routed, formatted result of one invocation. Chunk content is
// populated only for the grounded strategy.
type Payload struct {
	Strategy confidence.Strategy     `json:"strategy"`
	Tier     confidence.Tier         `json:"confidence"`
	Results  []knowledge.ScoredChunk `json:"results"`
	// Note is the confidence hedge, or the search-unavailable note on the
	// failure path; empty otherwise.
	Note       string `json:"note,omitempty"`
	Disclaimer string `json:"disclaimer,omitempty"`
	Message    string `json:"message,omitempty"`

	AverageSimilarity float64 `json:"average_similarity"`
	MaxSimilarity     float64 `json:"max_similarity"`
	WasReranked       bool    `json:"was_reranked"`

	// Context is the generator-ready rendering of the routed results.
	Context promptctx.Response `json:"context"`
}

// Orchestrator composes the retrieval pipeline. It holds no mutable state, so
// one instance may serve concurrent invocations, but invocations triggered in
// the same conversational turn conventionally get their own instance and
// recorder.
type Orchestrator struct {
	searcher     Searcher
	embedder     Embedder
	reformulator Reformulator
	merger       *fusion.Merger
	reranker     *rerank.Reranker
	assessor     *confidence.Assessor
	formatter    *promptctx.Formatter
	recorder     devlog.Recorder
	logger       *slog.Logger

	matchCount     int
	fullTextWeight float64
	semanticWeight float64
	rrfK           int
}

// Option customises the orchestrator.
type Option func(*Orchestrator)

// WithReformulator sets the query reformulator; absent, the original query is
// used alone.
func WithReformulator(r Reformulator) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reformulator = r
		}
	}
}

// WithReranker sets the rerank stage.
func WithReranker(r *rerank.Reranker) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reranker = r
		}
	}
}

// WithAssessor overrides the confidence assessor (custom thresholds).
func WithAssessor(a *confidence.Assessor) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.assessor = a
		}
	}
}

// WithFormatter overrides the context formatter.
func WithFormatter(f *promptctx.Formatter) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.formatter = f
		}
	}
}

// WithRecorder attaches a dev-log recorder; the default is a no-op.
func WithRecorder(r devlog.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithMerger overrides the RRF merger (custom smoothing constant).
func WithMerger(m *fusion.Merger) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.merger = m
		}
	}
}

// WithMatchCount sets how many fused results are requested per invocation.
func WithMatchCount(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.matchCount = n
		}
	}
}

// WithWeights sets the full-text/semantic weights passed to the search engine.
func WithWeights(fullText, semantic float64) Option {
	return func(o *Orchestrator) {
		if fullText >= 0 && semantic >= 0 {
			o.fullTextWeight = fullText
			o.semanticWeight = semantic
		}
	}
}

// WithSearchRRFK sets the rank fusion constant passed to the search engine.
// This tunes the engine's internal full-text/vector fusion, not the
// cross-variant merge owned by fusion.Merger.
func WithSearchRRFK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.rrfK = k
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator wires the pipeline. Searcher and embedder are required; the
// remaining stages default to pass-through or standard tuning.
func NewOrchestrator(searcher Searcher, embedder Embedder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		searcher:       searcher,
		embedder:       embedder,
		merger:         fusion.New(),
		reranker:       rerank.New(nil),
		assessor:       confidence.NewAssessor(),
		formatter:      promptctx.New(),
		recorder:       devlog.Nop{},
		logger:         logging.WithComponent("retrieval"),
		matchCount:     10,
		fullTextWeight: 1.0,
		semanticWeight: 1.0,
		rrfK:           60,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for one query. It never returns an error: every
// failure degrades to a routed payload with a user-visible qualification, so
// the caller can always distinguish grounded, ungrounded, and declined.
func (o *Orchestrator) Run(ctx context.Context, req Request) Payload {
	ctx, span := otel.Tracer("retrieval").Start(ctx, "orchestrator.run")
	span.SetAttributes(
		attribute.String("category", string(req.Category)),
		attribute.Int("sensitive_categories", len(req.SensitiveCategories)),
	)
	defer telemetry.End(span, nil)

	queries := []string{req.Query}
	if o.reformulator != nil {
		queries = o.reformulator.Reformulate(ctx, req.Query, string(req.Category), req.Modality)
	}
	o.recorder.Record("reformulate", map[string]any{
		"query":    req.Query,
		"variants": len(queries),
	})

	merged, err := o.merger.MergeParallel(ctx, queries, o.searchFunc(req), o.matchCount)
	if err != nil {
		// Fail-fast terminal route: no retry, no partial merge. A timeout
		// lands here through the context error just like any other failure.
		o.logger.Error("knowledge base search failed", "error", err, "category", req.Category)
		o.recorder.Record("search_failed", map[string]any{"error": err.Error()})
		return o.terminalPayload(req)
	}
	o.recorder.Record("search_merged", map[string]any{
		"queries": len(queries),
		"results": len(merged),
	})

	reranked := o.reranker.Rerank(ctx, req.Query, merged, o.matchCount)
	if reranked.WasReranked {
		o.recorder.Record("reranked", map[string]any{"results": len(reranked.Results)})
	}

	assessment := o.assessor.Assess(reranked.Results)
	decision := confidence.Route(assessment, req.SensitiveCategories)
	o.recorder.Record("routed", map[string]any{
		"tier":           string(assessment.Tier),
		"strategy":       string(decision.Strategy),
		"max_similarity": assessment.MaxSimilarity,
		"dropped":        assessment.DroppedCount,
	})

	formatted := o.formatter.Format(assessment.Tier, decision.Results, req.Modality)

	payload := Payload{
		Strategy:          decision.Strategy,
		Tier:              assessment.Tier,
		Note:              assessment.Note,
		Disclaimer:        decision.Disclaimer,
		Message:           decision.Message,
		AverageSimilarity: assessment.AverageSimilarity,
		MaxSimilarity:     assessment.MaxSimilarity,
		WasReranked:       reranked.WasReranked,
		Context:           formatted,
	}
	if decision.Strategy == confidence.StrategyGrounded {
		payload.Results = decision.Results
	}
	return payload
}

// searchFunc binds the invocation's filters into the per-variant search call:
// embed the variant, then hit the external engine.
func (o *Orchestrator) searchFunc(req Request) fusion.SearchFunc {
	return func(ctx context.Context, query string) ([]knowledge.ScoredChunk, error) {
		embedding, err := o.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		return o.searcher.Search(ctx, SearchRequest{
			QueryText:      query,
			QueryEmbedding: embedding,
			MatchCount:     o.matchCount,
			Category:       req.Category,
			Modality:       req.Modality,
			Jurisdiction:   req.Jurisdiction,
			FullTextWeight: o.fullTextWeight,
			SemanticWeight: o.semanticWeight,
			RRFK:           o.rrfK,
		})
	}
}

// terminalPayload is the degraded route when search itself is unavailable:
// decline when a sensitive category is in play, otherwise fall back to general
// knowledge. Reranking and assessment are skipped entirely.
func (o *Orchestrator) terminalPayload(req Request) Payload {
	assessment := confidence.Assessment{Tier: confidence.TierLow}
	decision := confidence.Route(assessment, req.SensitiveCategories)
	formatted := o.formatter.Format(confidence.TierLow, nil, req.Modality)
	return Payload{
		Strategy:   decision.Strategy,
		Tier:       confidence.TierLow,
		Note:       SearchUnavailableNote,
		Disclaimer: decision.Disclaimer,
		Message:    decision.Message,
		Context:    formatted,
	}
}
