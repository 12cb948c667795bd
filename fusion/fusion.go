// Package fusion fans a set of query variants out to the search collaborator
// concurrently and merges the ranked result lists with Reciprocal Rank Fusion.
package fusion

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// DefaultRRFK is the RRF smoothing constant. 60 is the value from the original
// RRF paper; it is tunable but rarely worth retuning.
const DefaultRRFK = 60

// SearchFunc runs one query against the search collaborator and returns its
// ranked results.
type SearchFunc func(ctx context.Context, query string) ([]knowledge.ScoredChunk, error)

// Merger merges multiple ranked result lists into one.
type Merger struct {
	k int
}

// Option customises the merger.
type Option func(*Merger)

// WithRRFK overrides the RRF smoothing constant.
func WithRRFK(k int) Option {
	return func(m *Merger) {
		if k > 0 {
			m.k = k
		}
	}
}

// New creates a merger with the default smoothing constant.
func New(opts ...Option) *Merger {
	m := &Merger{k: DefaultRRFK}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MergeParallel runs search for every query concurrently, waits for all of
// them, and fuses the lists: a result at 1-indexed rank r in one list
// contributes 1/(k+r) to its accumulated score, keyed by chunk ID. The first
// occurrence supplies the representative payload; later occurrences only add
// score. The merged set is sorted by fused score descending and truncated to
// matchCount.
//
// If any single search fails the whole merge fails. A partial merge would
// silently favour whichever queries happened to succeed, so the caller is
// expected to catch the error and fall back (see the orchestrator).
func (m *Merger) MergeParallel(ctx context.Context, queries []string, search SearchFunc, matchCount int) ([]knowledge.ScoredChunk, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	if search == nil {
		return nil, fmt.Errorf("fusion: search function is required")
	}

	perQuery := make([][]knowledge.ScoredChunk, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			results, err := search(gctx, q)
			if err != nil {
				return fmt.Errorf("search for query %d: %w", i, err)
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type accumulated struct {
		chunk knowledge.ScoredChunk
		score float64
		order int
	}
	merged := make(map[string]*accumulated)
	order := 0

	// Accumulation walks query lists in input order so ties resolve
	// deterministically regardless of goroutine completion order.
	for _, results := range perQuery {
		for rank, chunk := range results {
			contribution := 1.0 / float64(m.k+rank+1)
			if entry, ok := merged[chunk.ID]; ok {
				entry.score += contribution
				continue
			}
			merged[chunk.ID] = &accumulated{
				chunk: chunk,
				score: contribution,
				order: order,
			}
			order++
		}
	}

	fused := make([]*accumulated, 0, len(merged))
	for _, entry := range merged {
		fused = append(fused, entry)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].order < fused[j].order
	})

	if matchCount > 0 && len(fused) > matchCount {
		fused = fused[:matchCount]
	}

	out := make([]knowledge.ScoredChunk, len(fused))
	for i, entry := range fused {
		chunk := entry.chunk
		chunk.RRFScore = entry.score
		out[i] = chunk
	}
	return out, nil
}
