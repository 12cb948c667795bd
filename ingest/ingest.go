package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thomassleeman/therapy-app-sub000/corpus"
	"github.com/thomassleeman/therapy-app-sub000/generate"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
)

// embedBatchSize bounds one embedding API call. Batches run sequentially so a
// large corpus cannot flood the provider's rate limits.
const embedBatchSize = 100

// BatchEmbedder embeds many texts in one provider call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Report summarizes one ingestion run.
type Report struct {
	Documents int
	Chunks    int
	Parents   int
	Embedded  int
	Skipped   []string
}

// Ingestor reads source documents from a directory tree, chunks them by
// category, embeds child chunks, and replaces each document in the store.
type Ingestor struct {
	store    corpus.Store
	embedder BatchEmbedder
	chunker  *Chunker
	titler   generate.Client
	logger   *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithTitleGenerator enables model-generated titles for documents whose
// frontmatter title is a bare filename.
func WithTitleGenerator(client generate.Client) Option {
	return func(i *Ingestor) { i.titler = client }
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

func New(store corpus.Store, embedder BatchEmbedder, opts ...Option) *Ingestor {
	i := &Ingestor{
		store:    store,
		embedder: embedder,
		chunker:  NewChunker(),
		logger:   logging.WithComponent("ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run ingests every .md and .html file under dir. A document that fails to
// parse is skipped and reported; a storage or embedding failure aborts the
// run, since continuing would leave the corpus half-replaced without saying
// which half.
func (i *Ingestor) Run(ctx context.Context, dir string) (Report, error) {
	paths, err := sourceFiles(dir)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		doc, chunks, err := i.prepare(ctx, path)
		if err != nil {
			i.logger.Warn("skipping document", "path", path, "error", err)
			report.Skipped = append(report.Skipped, path)
			continue
		}
		if err := i.embedChildren(ctx, chunks); err != nil {
			return report, fmt.Errorf("embed %s: %w", path, err)
		}
		if err := i.store.UpsertDocument(ctx, doc, chunks); err != nil {
			return report, fmt.Errorf("store %s: %w", path, err)
		}
		report.Documents++
		for _, c := range chunks {
			if c.IsParent {
				report.Parents++
			} else {
				report.Chunks++
				report.Embedded++
			}
		}
		i.logger.Info("ingested document",
			"title", doc.Title,
			"category", doc.Category,
			"chunks", len(chunks))
	}
	return report, nil
}

func (i *Ingestor) prepare(ctx context.Context, path string) (corpus.Document, []corpus.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return corpus.Document{}, nil, err
	}
	text := string(raw)
	if strings.EqualFold(filepath.Ext(path), ".html") {
		converted, err := HTMLToMarkdown(text)
		if err != nil {
			return corpus.Document{}, nil, fmt.Errorf("convert html: %w", err)
		}
		text = converted
	}
	doc, body, err := ParseDocument(text)
	if err != nil {
		return corpus.Document{}, nil, err
	}
	if i.titler != nil && looksLikeFilename(doc.Title) {
		if title := i.generateTitle(ctx, body); title != "" {
			doc.Title = title
		}
	}

	body = Preprocess(body)
	split, err := i.chunker.ChunkHierarchy(body, doc.Category)
	if err != nil {
		return corpus.Document{}, nil, err
	}
	chunks := make([]corpus.Chunk, len(split))
	for idx, c := range split {
		chunks[idx] = corpus.Chunk{
			Content:         c.Content,
			ChunkIndex:      c.ChunkIndex,
			SectionPath:     c.SectionPath,
			IsParent:        c.IsParent,
			ParentIndex:     c.ParentIndex,
			Strategy:        c.Strategy,
			CharStart:       c.CharStart,
			CharEnd:         c.CharEnd,
			EstimatedTokens: c.EstimatedTokens,
		}
	}
	return doc, chunks, nil
}

// embedChildren fills Embedding on non-parent chunks, batching provider
// calls. Parents stay unembedded: they are context payloads, not search
// targets.
func (i *Ingestor) embedChildren(ctx context.Context, chunks []corpus.Chunk) error {
	var pending []int
	for idx, c := range chunks {
		if !c.IsParent {
			pending = append(pending, idx)
		}
	}
	for start := 0; start < len(pending); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pending))
		batch := pending[start:end]
		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = chunks[idx].Content
		}
		vectors, err := i.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		for j, idx := range batch {
			chunks[idx].Embedding = vectors[j]
		}
	}
	return nil
}

const titlePrompt = `Write a short, specific title for this clinical knowledge base document. Respond with the title only, no quotes or preamble.

Document excerpt:
%s`

func (i *Ingestor) generateTitle(ctx context.Context, body string) string {
	excerpt := body
	if len(excerpt) > 2000 {
		excerpt = excerpt[:2000]
	}
	title, err := i.titler.Generate(ctx, generate.Request{
		Prompt:        fmt.Sprintf(titlePrompt, excerpt),
		Deterministic: true,
		MaxTokens:     60,
	})
	if err != nil {
		i.logger.Warn("title generation failed", "error", err)
		return ""
	}
	title = strings.Trim(strings.TrimSpace(title), `"`)
	if title == "" || len(title) > 200 {
		return ""
	}
	return title
}

func looksLikeFilename(title string) bool {
	return strings.ContainsAny(title, "_/") || strings.HasSuffix(strings.ToLower(title), ".md")
}

func sourceFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".html":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
