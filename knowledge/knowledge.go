package knowledge

import (
	"fmt"
)

// DocumentType classifies a knowledge base document. The four types drive both
// the ingestion chunking strategy and query-time category filters.
type DocumentType string

const (
	DocumentTypeLegislation        DocumentType = "legislation"
	DocumentTypeGuideline          DocumentType = "guideline"
	DocumentTypeTherapeuticContent DocumentType = "therapeutic_content"
	DocumentTypeClinicalPractice   DocumentType = "clinical_practice"
)

// DocumentTypes lists every valid document type in a stable order.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeLegislation,
		DocumentTypeGuideline,
		DocumentTypeTherapeuticContent,
		DocumentTypeClinicalPractice,
	}
}

// ParseDocumentType validates a raw category string.
func ParseDocumentType(raw string) (DocumentType, error) {
	dt := DocumentType(raw)
	switch dt {
	case DocumentTypeLegislation, DocumentTypeGuideline, DocumentTypeTherapeuticContent, DocumentTypeClinicalPractice:
		return dt, nil
	}
	return "", fmt.Errorf("unknown document type %q", raw)
}

// ScoredChunk is a unit of retrieved knowledge as returned by the search
// collaborator. It lives for the duration of one retrieval and routing cycle.
//
// Similarity is a pointer because a chunk matched only by full-text search
// carries no vector score; SimilarityOrZero treats that as 0 for ranking.
type ScoredChunk struct {
	ID            string       `json:"id"`
	Content       string       `json:"content"`
	DocumentTitle string       `json:"document_title"`
	SectionPath   string       `json:"section_path,omitempty"`
	DocumentType  DocumentType `json:"document_type"`
	Modality      string       `json:"modality,omitempty"`
	Jurisdiction  string       `json:"jurisdiction,omitempty"`
	Similarity    *float64     `json:"similarity_score,omitempty"`
	RRFScore      float64      `json:"rrf_score"`
}

// SimilarityOrZero returns the vector similarity, treating a missing score as 0.
func (c ScoredChunk) SimilarityOrZero() float64 {
	if c.Similarity == nil {
		return 0
	}
	return *c.Similarity
}

// WithSimilarity returns a copy of the chunk with the similarity score replaced.
// Used by the reranker to overwrite stored scores with cross-encoder relevance.
func (c ScoredChunk) WithSimilarity(score float64) ScoredChunk {
	s := score
	c.Similarity = &s
	return c
}

// Similarityf is a convenience constructor for tests and adapters.
func Similarityf(v float64) *float64 {
	return &v
}
