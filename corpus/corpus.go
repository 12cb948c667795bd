// Package corpus defines the persistence contract for the knowledge base:
// documents keyed by unique title, chunks carrying embeddings and an optional
// parent back-reference. Implementations live under contrib/corpus.
package corpus

import (
	"context"
	"errors"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// ErrNotFound indicates that a requested document was not found.
var ErrNotFound = errors.New("document not found")

// Document is the ingestion-time metadata for one knowledge source, parsed
// from its frontmatter.
type Document struct {
	Title         string
	Category      knowledge.DocumentType
	Jurisdiction  string
	Modality      string
	Source        string
	Version       string
	URL           string
	EffectiveDate string
	Tags          []string
}

// Chunk is one persisted chunk of a document.
type Chunk struct {
	Content     string
	ChunkIndex  int
	SectionPath string

	// Parent/child hierarchy. Parents carry no embedding: only children are
	// searched, parents supply wider context once a child matches.
	IsParent    bool
	ParentIndex *int

	// Embedding is nil for parent chunks.
	Embedding []float32

	Strategy        string
	CharStart       int
	CharEnd         int
	EstimatedTokens int
}

// Store persists documents and their chunks. Upsert replaces by title:
// delete-by-title then reinsert, cascading to the document's chunks. Chunks
// are never mutated in place.
type Store interface {
	UpsertDocument(ctx context.Context, doc Document, chunks []Chunk) error
	DeleteDocument(ctx context.Context, title string) error
	CountChunks(ctx context.Context) (int, error)
}
