// Package pg persists and searches the knowledge base in PostgreSQL with the
// pgvector extension. Search is hybrid: full-text and vector rankings fused
// inside the database by the match_knowledge_chunks function, so one round
// trip serves one query variant.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/thomassleeman/therapy-app-sub000/config"
	"github.com/thomassleeman/therapy-app-sub000/corpus"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
	"github.com/thomassleeman/therapy-app-sub000/retrieval"
)

// Store implements corpus.Store and retrieval.Searcher on PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.setup(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setup schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setup(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS knowledge_documents (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			jurisdiction TEXT,
			modality TEXT,
			source TEXT,
			version TEXT,
			url TEXT,
			effective_date TEXT,
			tags TEXT[],
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES knowledge_documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			section_path TEXT,
			is_parent BOOLEAN NOT NULL DEFAULT FALSE,
			parent_index INT,
			parent_chunk_id BIGINT REFERENCES knowledge_chunks(id) ON DELETE CASCADE,
			embedding vector(%d),
			strategy TEXT,
			char_start INT,
			char_end INT,
			estimated_tokens INT,
			fts tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED,
			UNIQUE (document_id, chunk_index)
		)`, config.EmbeddingDimension),
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_fts_idx ON knowledge_chunks USING gin(fts)`,
		`CREATE INDEX IF NOT EXISTS knowledge_chunks_embedding_idx ON knowledge_chunks
			USING hnsw (embedding vector_cosine_ops)`,
		matchFunctionSQL,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// matchFunctionSQL fuses full-text and vector rankings with reciprocal rank
// fusion inside the database. Parent chunks are excluded from matching but
// similarity comes back per child so confidence tiering sees real cosine
// scores, not fused ranks.
const matchFunctionSQL = `
CREATE OR REPLACE FUNCTION match_knowledge_chunks(
	query_text TEXT,
	query_embedding vector,
	match_count INT,
	filter_category TEXT DEFAULT NULL,
	filter_modality TEXT DEFAULT NULL,
	filter_jurisdiction TEXT DEFAULT NULL,
	full_text_weight FLOAT DEFAULT 1.0,
	semantic_weight FLOAT DEFAULT 1.0,
	rrf_k INT DEFAULT 60
) RETURNS TABLE (
	id BIGINT,
	content TEXT,
	document_title TEXT,
	section_path TEXT,
	document_type TEXT,
	modality TEXT,
	jurisdiction TEXT,
	similarity_score FLOAT
) LANGUAGE sql AS $$
WITH candidates AS (
	SELECT c.id, c.content, c.section_path, c.embedding, c.fts,
		d.title, d.category, d.modality, d.jurisdiction
	FROM knowledge_chunks c
	JOIN knowledge_documents d ON d.id = c.document_id
	WHERE NOT c.is_parent
		AND c.embedding IS NOT NULL
		AND (filter_category IS NULL OR d.category = filter_category)
		AND (filter_modality IS NULL OR d.modality = filter_modality)
		AND (filter_jurisdiction IS NULL OR d.jurisdiction = filter_jurisdiction)
),
full_text AS (
	SELECT id, ROW_NUMBER() OVER (
		ORDER BY ts_rank_cd(fts, websearch_to_tsquery('english', query_text)) DESC
	) AS rank_ix
	FROM candidates
	WHERE fts @@ websearch_to_tsquery('english', query_text)
	LIMIT LEAST(match_count, 30) * 2
),
semantic AS (
	SELECT id, ROW_NUMBER() OVER (
		ORDER BY embedding <=> query_embedding
	) AS rank_ix
	FROM candidates
	LIMIT LEAST(match_count, 30) * 2
)
SELECT
	c.id,
	c.content,
	c.title AS document_title,
	c.section_path,
	c.category AS document_type,
	c.modality,
	c.jurisdiction,
	1 - (c.embedding <=> query_embedding) AS similarity_score
FROM full_text
FULL OUTER JOIN semantic ON full_text.id = semantic.id
JOIN candidates c ON c.id = COALESCE(full_text.id, semantic.id)
ORDER BY
	COALESCE(1.0 / (rrf_k + full_text.rank_ix), 0.0) * full_text_weight +
	COALESCE(1.0 / (rrf_k + semantic.rank_ix), 0.0) * semantic_weight
	DESC
LIMIT LEAST(match_count, 30)
$$;
`

// UpsertDocument replaces a document by title: the old row and its chunks are
// deleted in the same transaction as the reinsert.
func (s *Store) UpsertDocument(ctx context.Context, doc corpus.Document, chunks []corpus.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM knowledge_documents WHERE title = $1`, doc.Title); err != nil {
		return fmt.Errorf("delete existing: %w", err)
	}

	var docID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO knowledge_documents
			(title, category, jurisdiction, modality, source, version, url, effective_date, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		doc.Title, string(doc.Category), doc.Jurisdiction, doc.Modality,
		doc.Source, doc.Version, doc.URL, doc.EffectiveDate, pq.Array(doc.Tags),
	).Scan(&docID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO knowledge_chunks
			(document_id, chunk_index, content, section_path, is_parent, parent_index,
			 parent_chunk_id, embedding, strategy, char_start, char_end, estimated_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9, $10, $11, $12)
		RETURNING id`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	// Parents precede their children in chunk order, so each child's
	// parent_chunk_id resolves from the ids already returned in this batch.
	idByIndex := make(map[int]int64, len(chunks))
	for _, c := range chunks {
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = vectorLiteral(c.Embedding)
		}
		parentChunkID, err := resolveParentID(idByIndex, c)
		if err != nil {
			return err
		}
		var id int64
		if err := stmt.QueryRowContext(ctx,
			docID, c.ChunkIndex, c.Content, c.SectionPath, c.IsParent, c.ParentIndex,
			parentChunkID, embedding, c.Strategy, c.CharStart, c.CharEnd, c.EstimatedTokens).Scan(&id); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
		idByIndex[c.ChunkIndex] = id
	}
	return tx.Commit()
}

// resolveParentID maps a child's parent chunk index to the row id inserted
// earlier in the same batch. Returns nil for parents and unparented chunks.
func resolveParentID(idByIndex map[int]int64, c corpus.Chunk) (any, error) {
	if c.ParentIndex == nil {
		return nil, nil
	}
	id, ok := idByIndex[*c.ParentIndex]
	if !ok {
		return nil, fmt.Errorf("chunk %d references parent %d not yet inserted", c.ChunkIndex, *c.ParentIndex)
	}
	return id, nil
}

// DeleteDocument removes a document and its chunks by title.
func (s *Store) DeleteDocument(ctx context.Context, title string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM knowledge_documents WHERE title = $1`, title)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return corpus.ErrNotFound
	}
	return nil
}

// CountChunks reports the number of searchable (child) chunks.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE NOT is_parent`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Search implements retrieval.Searcher via the match_knowledge_chunks
// function.
func (s *Store) Search(ctx context.Context, req retrieval.SearchRequest) ([]knowledge.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, document_title, section_path, document_type, modality, jurisdiction, similarity_score
		 FROM match_knowledge_chunks($1, $2::vector, $3, $4, $5, $6, $7, $8, $9)`,
		req.QueryText,
		vectorLiteral(req.QueryEmbedding),
		req.MatchCount,
		nullableString(string(req.Category)),
		nullableString(req.Modality),
		nullableString(req.Jurisdiction),
		req.FullTextWeight,
		req.SemanticWeight,
		rrfKOrDefault(req.RRFK),
	)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	defer rows.Close()

	var out []knowledge.ScoredChunk
	for rows.Next() {
		var (
			id                           int64
			content, title, docType      string
			sectionPath, modality, juris sql.NullString
			similarity                   sql.NullFloat64
		)
		if err := rows.Scan(&id, &content, &title, &sectionPath,
			&docType, &modality, &juris, &similarity); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, scoredChunkRow(id, content, title, docType, sectionPath, modality, juris, similarity))
	}
	return out, rows.Err()
}

// scoredChunkRow converts one match_knowledge_chunks row into the canonical
// result type. NULL similarity means the chunk matched full-text only.
func scoredChunkRow(id int64, content, title, docType string,
	sectionPath, modality, jurisdiction sql.NullString, similarity sql.NullFloat64) knowledge.ScoredChunk {
	chunk := knowledge.ScoredChunk{
		ID:            fmt.Sprintf("%d", id),
		Content:       content,
		DocumentTitle: title,
		DocumentType:  knowledge.DocumentType(docType),
		SectionPath:   sectionPath.String,
		Modality:      modality.String,
		Jurisdiction:  jurisdiction.String,
	}
	if similarity.Valid {
		chunk = chunk.WithSimilarity(similarity.Float64)
	}
	return chunk
}

// vectorLiteral renders a pgvector input literal like [0.1,0.2].
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// defaultRRFK matches the SQL function's rrf_k default for callers that leave
// the request field unset.
const defaultRRFK = 60

func rrfKOrDefault(k int) int {
	if k <= 0 {
		return defaultRRFK
	}
	return k
}
