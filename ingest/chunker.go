// Package ingest turns source documents into embedded, persisted knowledge
// base chunks. Splitting is category-aware: structured practitioner prose
// (legislation, guidelines, clinical practice) gets larger chunks broken at
// numbered sections; narrative therapeutic content gets smaller chunks with
// heavier overlap because technique-level queries need focused embeddings.
package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// Sizing is character-based at roughly 4 characters per token.
const (
	// Structured prose: ~500 token chunks, ~18% overlap.
	structuredChunkSize = 2000
	structuredOverlap   = 360
	structuredParent    = 3600

	// Narrative therapeutic content: ~300 token chunks, ~35% overlap.
	narrativeChunkSize = 1200
	narrativeOverlap   = 420
	narrativeParent    = 3200
)

// Chunk is one splitter output, prior to embedding and persistence.
type Chunk struct {
	Content     string
	ChunkIndex  int
	SectionPath string

	IsParent    bool
	ParentIndex *int

	Strategy        string
	CharStart       int
	CharEnd         int
	EstimatedTokens int
}

type strategy struct {
	name       string
	chunkSize  int
	overlap    int
	parentSize int
	// markSections inserts synthetic boundaries before numbered principles
	// and sections so the splitter prefers not to cut through them.
	markSections bool
}

func strategyFor(category knowledge.DocumentType) (strategy, error) {
	switch category {
	case knowledge.DocumentTypeLegislation, knowledge.DocumentTypeGuideline, knowledge.DocumentTypeClinicalPractice:
		// Legislation in this corpus is practitioner prose about the law,
		// not raw statute, so it shares the guideline strategy.
		return strategy{
			name:         "structured",
			chunkSize:    structuredChunkSize,
			overlap:      structuredOverlap,
			parentSize:   structuredParent,
			markSections: true,
		}, nil
	case knowledge.DocumentTypeTherapeuticContent:
		return strategy{
			name:       "narrative",
			chunkSize:  narrativeChunkSize,
			overlap:    narrativeOverlap,
			parentSize: narrativeParent,
		}, nil
	}
	return strategy{}, fmt.Errorf("ingest: no chunking strategy for category %q", category)
}

// Chunker splits documents according to their category.
type Chunker struct {
	tokens *TokenCounter
}

// NewChunker creates a chunker with its own token counter.
func NewChunker() *Chunker {
	return &Chunker{tokens: NewTokenCounter()}
}

// Chunk splits a document body. An unknown category is a programming error at
// the call site (categories are validated at frontmatter parse time) and is
// reported as an error rather than guessed around.
func (c *Chunker) Chunk(text string, category knowledge.DocumentType) ([]Chunk, error) {
	strat, err := strategyFor(category)
	if err != nil {
		return nil, err
	}
	marked := newMarkedText(text, strat.markSections)
	headings := scanHeadings(text)

	splitter := newRecursiveSplitter(strat.chunkSize, strat.overlap, marked.separators())
	if marked.marked {
		splitter.hardBoundary = boundaryMarker
	}
	spans := splitter.Split(marked.text)

	chunks := make([]Chunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, c.newChunk(marked, headings, strat, i, span, false, nil))
	}
	return chunks, nil
}

// ChunkHierarchy splits a document into parent spans and re-splits each parent
// into child chunks. Parents exist only to supply wider context when a child
// matches; children carry a back-reference to their parent's chunk index.
func (c *Chunker) ChunkHierarchy(text string, category knowledge.DocumentType) ([]Chunk, error) {
	strat, err := strategyFor(category)
	if err != nil {
		return nil, err
	}
	marked := newMarkedText(text, strat.markSections)
	headings := scanHeadings(text)

	parentSplitter := newRecursiveSplitter(strat.parentSize, 0, marked.separators())
	childSplitter := newRecursiveSplitter(strat.chunkSize, strat.overlap, marked.separators())
	if marked.marked {
		parentSplitter.hardBoundary = boundaryMarker
		childSplitter.hardBoundary = boundaryMarker
	}

	var chunks []Chunk
	index := 0
	for _, parentSpan := range parentSplitter.Split(marked.text) {
		parentIndex := index
		chunks = append(chunks, c.newChunk(marked, headings, strat, parentIndex, parentSpan, true, nil))
		index++

		childSpans := childSplitter.Split(marked.text[parentSpan.Start:parentSpan.End])
		for _, rel := range childSpans {
			abs := Span{parentSpan.Start + rel.Start, parentSpan.Start + rel.End}
			pi := parentIndex
			chunks = append(chunks, c.newChunk(marked, headings, strat, index, abs, false, &pi))
			index++
		}
	}
	return chunks, nil
}

func (c *Chunker) newChunk(marked *markedText, headings []heading, strat strategy, index int, span Span, isParent bool, parentIndex *int) Chunk {
	content := marked.content(span)
	start, end := marked.originalRange(span)
	return Chunk{
		Content:         content,
		ChunkIndex:      index,
		SectionPath:     sectionPathAt(headings, start),
		IsParent:        isParent,
		ParentIndex:     parentIndex,
		Strategy:        strat.name,
		CharStart:       start,
		CharEnd:         end,
		EstimatedTokens: c.tokens.Estimate(content),
	}
}

// boundaryMarker is the synthetic top-priority separator inserted before
// numbered principles and sections. It is stripped from all output.
const boundaryMarker = "\x00"

// sectionStartPattern matches line starts that open a numbered principle,
// section, or article in practitioner guidance documents.
var sectionStartPattern = regexp.MustCompile(`(?mi)^(?:\d+(?:\.\d+)*[.)]\s+|principle\s+\d+|section\s+\d+|article\s+\d+|standard\s+\d+)`)

// markedText is a working copy of the source with boundary markers inserted,
// plus the bookkeeping to map marked offsets back to original offsets.
type markedText struct {
	text       string
	insertions []int // marker positions in the marked text, ascending
	marked     bool
}

func newMarkedText(text string, mark bool) *markedText {
	if !mark {
		return &markedText{text: text}
	}
	locs := sectionStartPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return &markedText{text: text}
	}
	var b strings.Builder
	b.Grow(len(text) + len(locs))
	insertions := make([]int, 0, len(locs))
	prev := 0
	for _, loc := range locs {
		b.WriteString(text[prev:loc[0]])
		insertions = append(insertions, b.Len())
		b.WriteString(boundaryMarker)
		prev = loc[0]
	}
	b.WriteString(text[prev:])
	return &markedText{text: b.String(), insertions: insertions, marked: true}
}

func (m *markedText) separators() []string {
	if m.marked {
		return []string{boundaryMarker, "\n\n", "\n", ". ", " "}
	}
	return []string{"\n\n", "\n", ". ", " "}
}

// content returns the span's text with markers stripped.
func (m *markedText) content(span Span) string {
	raw := m.text[span.Start:span.End]
	if len(m.insertions) == 0 {
		return raw
	}
	return strings.TrimSpace(strings.ReplaceAll(raw, boundaryMarker, ""))
}

// originalRange maps a marked-text span back to offsets in the source.
func (m *markedText) originalRange(span Span) (int, int) {
	return m.originalOffset(span.Start), m.originalOffset(span.End)
}

func (m *markedText) originalOffset(pos int) int {
	// Every insertion before pos shifted the text by one marker byte.
	shift := sort.SearchInts(m.insertions, pos)
	return pos - shift*len(boundaryMarker)
}
