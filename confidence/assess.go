// Package confidence tiers retrieved result sets and routes them to a response
// strategy. Both operations are pure functions over their inputs; all
// thresholds are named configuration rather than literals because they are
// expected to be retuned as the corpus grows.
package confidence

import (
	"sort"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// Tier buckets how trustworthy a retrieved result set is for clinical use.
type Tier string

const (
	TierHigh     Tier = "high"
	TierModerate Tier = "moderate"
	TierLow      Tier = "low"
)

// Thresholds hold the similarity cut-offs for tiering.
type Thresholds struct {
	// High: at or above this maximum-similarity the set is high confidence.
	High float64
	// Low: below this, individual chunks are discarded; a set whose best
	// match is below it is low confidence overall.
	Low float64
	// MaxResults caps how many chunks survive assessment.
	MaxResults int
}

// DefaultThresholds returns the current tuning. Provisional values; retune
// against retrieval evaluations before trusting them too far.
func DefaultThresholds() Thresholds {
	return Thresholds{
		High:       0.80,
		Low:        0.55,
		MaxResults: 5,
	}
}

// Fixed hedge texts surfaced alongside moderate and low tiers.
const (
	ModerateNote = "The knowledge base contains related guidance but no closely matching source. " +
		"Treat the following as a starting point and verify it against the primary source before relying on it."
	LowNote = "No sufficiently relevant knowledge base content was found for this query."
)

// Assessment is the tiered, filtered view of one retrieved result set.
type Assessment struct {
	// Results is the surviving subset: similarity at or above the low
	// threshold, sorted descending, capped at MaxResults. Always empty for
	// the low tier.
	Results []knowledge.ScoredChunk
	Tier    Tier
	// Note is the hedge text for moderate and low tiers; empty for high.
	Note string
	// AverageSimilarity and MaxSimilarity are computed over the full input
	// set, before any filtering.
	AverageSimilarity float64
	MaxSimilarity     float64
	// DroppedCount is how many chunks the low-threshold filter removed.
	DroppedCount int
}

// Assessor tiers result sets against configured thresholds.
type Assessor struct {
	thresholds Thresholds
}

// Option customises the assessor.
type Option func(*Assessor)

// WithThresholds overrides the default tuning.
func WithThresholds(t Thresholds) Option {
	return func(a *Assessor) {
		if t.High > 0 && t.Low > 0 && t.MaxResults > 0 {
			a.thresholds = t
		}
	}
}

// NewAssessor creates an assessor with the default thresholds.
func NewAssessor(opts ...Option) *Assessor {
	a := &Assessor{thresholds: DefaultThresholds()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess tiers a result set. The tier is decided by the maximum similarity in
// the full input: one excellent match makes the knowledge base answerable even
// when the rest of the candidates are weak, and if even the best match falls
// below the low threshold no amount of averaging rescues the set.
//
// A low-tier assessment always carries empty results. That holds even in the
// degenerate case where some chunk individually clears the low threshold while
// the maximum does not; the set-wide judgement wins. Missing similarity scores
// count as zero throughout.
func (a *Assessor) Assess(results []knowledge.ScoredChunk) Assessment {
	if len(results) == 0 {
		return Assessment{
			Tier: TierLow,
			Note: LowNote,
		}
	}

	var sum, max float64
	for _, chunk := range results {
		score := chunk.SimilarityOrZero()
		sum += score
		if score > max {
			max = score
		}
	}
	avg := sum / float64(len(results))

	if max < a.thresholds.Low {
		return Assessment{
			Tier:              TierLow,
			Note:              LowNote,
			AverageSimilarity: avg,
			MaxSimilarity:     max,
			DroppedCount:      len(results),
		}
	}

	kept := make([]knowledge.ScoredChunk, 0, len(results))
	for _, chunk := range results {
		if chunk.SimilarityOrZero() >= a.thresholds.Low {
			kept = append(kept, chunk)
		}
	}
	dropped := len(results) - len(kept)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].SimilarityOrZero() > kept[j].SimilarityOrZero()
	})
	if len(kept) > a.thresholds.MaxResults {
		kept = kept[:a.thresholds.MaxResults]
	}

	assessment := Assessment{
		Results:           kept,
		AverageSimilarity: avg,
		MaxSimilarity:     max,
		DroppedCount:      dropped,
	}
	if max >= a.thresholds.High {
		assessment.Tier = TierHigh
	} else {
		assessment.Tier = TierModerate
		assessment.Note = ModerateNote
	}
	return assessment
}
