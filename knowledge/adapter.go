package knowledge

import (
	"encoding/json"
	"fmt"
)

// External search services are inconsistent about field naming: some expose
// snake_case columns, others camelCase JSON. The wire type below accepts both
// spellings and normalizes into the canonical ScoredChunk, so the duality never
// leaks past this boundary.
type chunkWire struct {
	ID      json.RawMessage `json:"id"`
	Content string          `json:"content"`

	DocumentTitle      string `json:"document_title"`
	DocumentTitleCamel string `json:"documentTitle"`

	SectionPath      *string `json:"section_path"`
	SectionPathCamel *string `json:"sectionPath"`

	DocumentType      string `json:"document_type"`
	DocumentTypeCamel string `json:"documentType"`

	Modality     *string `json:"modality"`
	Jurisdiction *string `json:"jurisdiction"`

	Similarity      *float64 `json:"similarity_score"`
	SimilarityCamel *float64 `json:"similarityScore"`

	RRFScore      float64  `json:"rrf_score"`
	RRFScoreCamel *float64 `json:"rrfScore"`
}

// DecodeScoredChunk normalizes one search-result record into the canonical form.
func DecodeScoredChunk(raw []byte) (ScoredChunk, error) {
	var w chunkWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return ScoredChunk{}, fmt.Errorf("decode scored chunk: %w", err)
	}
	return w.normalize()
}

// DecodeScoredChunks normalizes a JSON array of search-result records.
func DecodeScoredChunks(raw []byte) ([]ScoredChunk, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode scored chunks: %w", err)
	}
	out := make([]ScoredChunk, 0, len(rows))
	for i, row := range rows {
		chunk, err := DecodeScoredChunk(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (w chunkWire) normalize() (ScoredChunk, error) {
	id, err := decodeID(w.ID)
	if err != nil {
		return ScoredChunk{}, err
	}
	if id == "" {
		return ScoredChunk{}, fmt.Errorf("scored chunk missing id")
	}

	docType := firstNonEmpty(w.DocumentType, w.DocumentTypeCamel)
	chunk := ScoredChunk{
		ID:            id,
		Content:       w.Content,
		DocumentTitle: firstNonEmpty(w.DocumentTitle, w.DocumentTitleCamel),
		DocumentType:  DocumentType(docType),
		RRFScore:      w.RRFScore,
	}
	if w.SectionPath != nil {
		chunk.SectionPath = *w.SectionPath
	} else if w.SectionPathCamel != nil {
		chunk.SectionPath = *w.SectionPathCamel
	}
	if w.Modality != nil {
		chunk.Modality = *w.Modality
	}
	if w.Jurisdiction != nil {
		chunk.Jurisdiction = *w.Jurisdiction
	}
	if w.Similarity != nil {
		chunk.Similarity = w.Similarity
	} else if w.SimilarityCamel != nil {
		chunk.Similarity = w.SimilarityCamel
	}
	if w.RRFScore == 0 && w.RRFScoreCamel != nil {
		chunk.RRFScore = *w.RRFScoreCamel
	}
	return chunk, nil
}

// decodeID accepts both string and numeric identifiers; corpus rows use UUIDs
// but some stores return integer keys.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("scored chunk id has unsupported type: %s", string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
