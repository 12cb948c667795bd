package fusion

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

func chunk(id string) knowledge.ScoredChunk {
	return knowledge.ScoredChunk{ID: id, Content: "content " + id}
}

func fixedSearch(results map[string][]knowledge.ScoredChunk) SearchFunc {
	return func(ctx context.Context, query string) ([]knowledge.ScoredChunk, error) {
		return results[query], nil
	}
}

func TestMergeParallelAccumulatesAcrossQueries(t *testing.T) {
	search := fixedSearch(map[string][]knowledge.ScoredChunk{
		"q1": {chunk("a"), chunk("b")},
		"q2": {chunk("b"), chunk("c")},
	})

	merged, err := New().MergeParallel(context.Background(), []string{"q1", "q2"}, search, 10)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 merged chunks, got %d", len(merged))
	}

	// b appears at rank 2 in q1 and rank 1 in q2; its fused score must beat
	// a's single rank-1 contribution.
	if merged[0].ID != "b" {
		t.Fatalf("expected b ranked first, got %q", merged[0].ID)
	}
	wantB := 1.0/62.0 + 1.0/61.0
	if math.Abs(merged[0].RRFScore-wantB) > 1e-12 {
		t.Fatalf("expected b score %v, got %v", wantB, merged[0].RRFScore)
	}
}

func TestMergeParallelTiesResolveByFirstOccurrence(t *testing.T) {
	// a and c hold rank 1 in their respective lists, so their scores tie
	// exactly. The query listed first wins.
	search := fixedSearch(map[string][]knowledge.ScoredChunk{
		"q1": {chunk("a")},
		"q2": {chunk("c")},
	})

	for i := 0; i < 20; i++ {
		merged, err := New().MergeParallel(context.Background(), []string{"q1", "q2"}, search, 10)
		if err != nil {
			t.Fatalf("merge error: %v", err)
		}
		if merged[0].ID != "a" || merged[1].ID != "c" {
			t.Fatalf("run %d: expected deterministic order [a c], got [%s %s]",
				i, merged[0].ID, merged[1].ID)
		}
	}
}

func TestMergeParallelTruncatesToMatchCount(t *testing.T) {
	search := fixedSearch(map[string][]knowledge.ScoredChunk{
		"q": {chunk("a"), chunk("b"), chunk("c"), chunk("d")},
	})

	merged, err := New().MergeParallel(context.Background(), []string{"q"}, search, 2)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 chunks after truncation, got %d", len(merged))
	}
	if merged[0].ID != "a" || merged[1].ID != "b" {
		t.Fatalf("expected top 2 by rank, got [%s %s]", merged[0].ID, merged[1].ID)
	}
}

func TestMergeParallelKeepsFirstOccurrencePayload(t *testing.T) {
	withSection := chunk("a")
	withSection.SectionPath = "first variant"
	otherSection := chunk("a")
	otherSection.SectionPath = "second variant"

	search := fixedSearch(map[string][]knowledge.ScoredChunk{
		"q1": {withSection},
		"q2": {otherSection},
	})

	merged, err := New().MergeParallel(context.Background(), []string{"q1", "q2"}, search, 10)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected deduplicated single chunk, got %d", len(merged))
	}
	if merged[0].SectionPath != "first variant" {
		t.Fatalf("expected first occurrence payload kept, got %q", merged[0].SectionPath)
	}
}

func TestMergeParallelFailsWhenAnySearchFails(t *testing.T) {
	boom := errors.New("search down")
	calls := 0
	var mu sync.Mutex
	search := func(ctx context.Context, query string) ([]knowledge.ScoredChunk, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if query == "bad" {
			return nil, boom
		}
		return []knowledge.ScoredChunk{chunk("a")}, nil
	}

	_, err := New().MergeParallel(context.Background(), []string{"good", "bad"}, search, 10)
	if err == nil {
		t.Fatal("expected merge to fail when one search fails")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped search error, got %v", err)
	}
}

func TestMergeParallelEmptyQueries(t *testing.T) {
	merged, err := New().MergeParallel(context.Background(), nil, fixedSearch(nil), 10)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	if merged != nil {
		t.Fatalf("expected nil result for no queries, got %v", merged)
	}
}

func TestWithRRFKChangesContribution(t *testing.T) {
	search := fixedSearch(map[string][]knowledge.ScoredChunk{
		"q": {chunk("a")},
	})

	merged, err := New(WithRRFK(10)).MergeParallel(context.Background(), []string{"q"}, search, 10)
	if err != nil {
		t.Fatalf("merge error: %v", err)
	}
	want := 1.0 / 11.0
	if math.Abs(merged[0].RRFScore-want) > 1e-12 {
		t.Fatalf("expected score %v with k=10, got %v", want, merged[0].RRFScore)
	}
}
