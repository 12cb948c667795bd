package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/thomassleeman/therapy-app-sub000/corpus"
	"github.com/thomassleeman/therapy-app-sub000/generate"
)

type stubStore struct {
	upserts []upsert
	err     error
}

type upsert struct {
	doc    corpus.Document
	chunks []corpus.Chunk
}

func (s *stubStore) UpsertDocument(_ context.Context, doc corpus.Document, chunks []corpus.Chunk) error {
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, upsert{doc: doc, chunks: chunks})
	return nil
}

func (s *stubStore) DeleteDocument(context.Context, string) error { return nil }
func (s *stubStore) CountChunks(context.Context) (int, error)     { return 0, nil }

type stubEmbedder struct {
	batches [][]string
	err     error
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors, nil
}

type stubTitler struct {
	response string
	err      error
	calls    int
}

func (s *stubTitler) Generate(context.Context, generate.Request) (string, error) {
	s.calls++
	return s.response, s.err
}

func writeDoc(t *testing.T, dir, name, title, category, body string) {
	t.Helper()
	content := fmt.Sprintf("---\ntitle: %s\ncategory: %s\n---\n\n%s\n", title, category, body)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRunIngestsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guidance.md", "Supervision Guidance", "guideline",
		"## Supervision\n\nSupervisees should review casework regularly with a qualified supervisor.")
	writeDoc(t, dir, "grounding.md", "Grounding Techniques", "therapeutic_content",
		"Grounding techniques help clients reconnect with the present moment during dissociation.")

	store := &stubStore{}
	embedder := &stubEmbedder{}
	ing := New(store, embedder)

	report, err := ing.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Documents != 2 {
		t.Fatalf("Documents = %d", report.Documents)
	}
	if len(report.Skipped) != 0 {
		t.Fatalf("Skipped = %v", report.Skipped)
	}
	if len(store.upserts) != 2 {
		t.Fatalf("upserts = %d", len(store.upserts))
	}

	// Walk order is sorted, so grounding.md lands first.
	if store.upserts[0].doc.Title != "Grounding Techniques" {
		t.Fatalf("first upsert title = %q", store.upserts[0].doc.Title)
	}
	for _, u := range store.upserts {
		for _, c := range u.chunks {
			if c.IsParent && c.Embedding != nil {
				t.Fatalf("parent chunk %d carries an embedding", c.ChunkIndex)
			}
			if !c.IsParent && len(c.Embedding) == 0 {
				t.Fatalf("child chunk %d missing embedding", c.ChunkIndex)
			}
		}
	}
	if report.Embedded != report.Chunks {
		t.Fatalf("Embedded = %d, Chunks = %d", report.Embedded, report.Chunks)
	}
}

func TestRunSkipsUnparseableDocuments(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.md", "Consent Basics", "clinical_practice",
		"Informed consent must be revisited when the treatment plan changes.")
	if err := os.WriteFile(filepath.Join(dir, "bad.md"), []byte("no frontmatter here"), 0o644); err != nil {
		t.Fatalf("write bad.md: %v", err)
	}

	store := &stubStore{}
	ing := New(store, &stubEmbedder{})

	report, err := ing.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Documents != 1 {
		t.Fatalf("Documents = %d", report.Documents)
	}
	if len(report.Skipped) != 1 || filepath.Base(report.Skipped[0]) != "bad.md" {
		t.Fatalf("Skipped = %v", report.Skipped)
	}
}

func TestRunAbortsOnEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", "Boundaries", "therapeutic_content",
		"Professional boundaries protect both client and therapist.")

	store := &stubStore{}
	ing := New(store, &stubEmbedder{err: errors.New("rate limited")})

	_, err := ing.Run(context.Background(), dir)
	if err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if len(store.upserts) != 0 {
		t.Fatal("store written despite embed failure")
	}
}

func TestRunAbortsOnStoreFailure(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", "Boundaries", "therapeutic_content",
		"Professional boundaries protect both client and therapist.")

	ing := New(&stubStore{err: errors.New("connection reset")}, &stubEmbedder{})
	if _, err := ing.Run(context.Background(), dir); err == nil {
		t.Fatal("expected error when store fails")
	}
}

func TestRunIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not ingestible"), 0o644); err != nil {
		t.Fatalf("write notes.txt: %v", err)
	}

	report, err := New(&stubStore{}, &stubEmbedder{}).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Documents != 0 || len(report.Skipped) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestTitleGenerationReplacesFilenameTitles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", "bacp_ethical_framework.md", "guideline",
		"The framework sets out commitments that therapists make to their clients.")

	store := &stubStore{}
	titler := &stubTitler{response: "BACP Ethical Framework"}
	ing := New(store, &stubEmbedder{}, WithTitleGenerator(titler))

	if _, err := ing.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if titler.calls != 1 {
		t.Fatalf("titler called %d times", titler.calls)
	}
	if store.upserts[0].doc.Title != "BACP Ethical Framework" {
		t.Fatalf("title = %q", store.upserts[0].doc.Title)
	}
}

func TestTitleGenerationFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", "some_file.md", "guideline", "Content about supervision requirements.")

	store := &stubStore{}
	ing := New(store, &stubEmbedder{}, WithTitleGenerator(&stubTitler{err: errors.New("down")}))

	if _, err := ing.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.upserts[0].doc.Title != "some_file.md" {
		t.Fatalf("title = %q", store.upserts[0].doc.Title)
	}
}

func TestTitleGenerationSkippedForRealTitles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.md", "Working With Trauma", "therapeutic_content", "Phased trauma work content.")

	titler := &stubTitler{response: "should not be used"}
	ing := New(&stubStore{}, &stubEmbedder{}, WithTitleGenerator(titler))

	if _, err := ing.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if titler.calls != 0 {
		t.Fatalf("titler called %d times for a real title", titler.calls)
	}
}
