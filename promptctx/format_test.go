package promptctx

import (
	"strings"
	"testing"

	"github.com/thomassleeman/therapy-app-sub000/confidence"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

func testChunk(title, content string) knowledge.ScoredChunk {
	return knowledge.ScoredChunk{ID: "1", DocumentTitle: title, Content: content}
}

func TestFormatHighTierRendersDocumentBlocks(t *testing.T) {
	resp := New().Format(confidence.TierHigh, []knowledge.ScoredChunk{
		{ID: "1", DocumentTitle: "BACP Ethical Framework", SectionPath: "Ethics > Confidentiality", Content: "Guidance text."},
		{ID: "2", DocumentTitle: "Mental Health Act Guide", Content: "Statute summary."},
	}, "")

	if resp.ChunksInjected != 2 {
		t.Fatalf("expected 2 chunks injected, got %d", resp.ChunksInjected)
	}
	if resp.HasQualification {
		t.Fatal("high tier must not carry a qualification")
	}
	want := `<document id="1" title="BACP Ethical Framework" section="Ethics > Confidentiality">`
	if !strings.Contains(resp.ContextString, want) {
		t.Fatalf("expected first document header %q in:\n%s", want, resp.ContextString)
	}
	if !strings.Contains(resp.ContextString, `<document id="2" title="Mental Health Act Guide">`) {
		t.Fatalf("expected second header without section attribute in:\n%s", resp.ContextString)
	}
	if !strings.Contains(resp.ContextString, "Guidance text.\n</document>") {
		t.Fatalf("expected content followed by closing tag in:\n%s", resp.ContextString)
	}
}

func TestFormatEscapesAttributesOnly(t *testing.T) {
	resp := New().Format(confidence.TierHigh, []knowledge.ScoredChunk{
		testChunk(`Risk & "Safety" <Guide>`, `Content keeps <tags> & "quotes" as-is.`),
	}, "")

	if !strings.Contains(resp.ContextString, `title="Risk &amp; &quot;Safety&quot; &lt;Guide&gt;"`) {
		t.Fatalf("expected escaped title attribute in:\n%s", resp.ContextString)
	}
	if !strings.Contains(resp.ContextString, `Content keeps <tags> & "quotes" as-is.`) {
		t.Fatalf("expected unescaped chunk body in:\n%s", resp.ContextString)
	}
}

func TestFormatModerateTierPrependsPreamble(t *testing.T) {
	resp := New().Format(confidence.TierModerate, []knowledge.ScoredChunk{
		testChunk("Title", "Body"),
	}, "")

	if !strings.HasPrefix(resp.ContextString, ModeratePreamble) {
		t.Fatalf("expected moderate preamble prefix in:\n%s", resp.ContextString)
	}
	if !resp.HasQualification {
		t.Fatal("moderate tier must carry a qualification")
	}
}

func TestFormatLowTierReturnsFallback(t *testing.T) {
	resp := New().Format(confidence.TierLow, nil, "")
	if resp.ChunksInjected != 0 {
		t.Fatalf("expected no chunks injected, got %d", resp.ChunksInjected)
	}
	if !resp.HasQualification {
		t.Fatal("low tier must carry a qualification")
	}
	if strings.Contains(resp.ContextString, "<document") {
		t.Fatalf("expected no document blocks in fallback:\n%s", resp.ContextString)
	}
}

func TestFormatLowTierFallbackNamesModality(t *testing.T) {
	resp := New().Format(confidence.TierLow, nil, "person-centred therapy")
	if !strings.Contains(resp.ContextString, "person-centred therapy") {
		t.Fatalf("expected modality named in fallback:\n%s", resp.ContextString)
	}
}

func TestFormatEmptyResultsFallsBackEvenOnHighTier(t *testing.T) {
	resp := New().Format(confidence.TierHigh, nil, "")
	if !resp.HasQualification {
		t.Fatal("empty results must carry a qualification regardless of tier")
	}
	if resp.ChunksInjected != 0 {
		t.Fatalf("expected no chunks injected, got %d", resp.ChunksInjected)
	}
}

func TestFormatCapsChunks(t *testing.T) {
	var chunks []knowledge.ScoredChunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, testChunk("Title", "Body"))
	}
	resp := New(WithMaxChunks(3)).Format(confidence.TierHigh, chunks, "")
	if resp.ChunksInjected != 3 {
		t.Fatalf("expected cap of 3, got %d", resp.ChunksInjected)
	}
	if strings.Count(resp.ContextString, "<document ") != 3 {
		t.Fatalf("expected 3 document blocks in:\n%s", resp.ContextString)
	}
}

func TestFormatNumbersDocumentsFromOne(t *testing.T) {
	resp := New().Format(confidence.TierHigh, []knowledge.ScoredChunk{
		testChunk("First", "a"),
		testChunk("Second", "b"),
	}, "")
	if !strings.Contains(resp.ContextString, `<document id="1"`) ||
		!strings.Contains(resp.ContextString, `<document id="2"`) {
		t.Fatalf("expected 1-based document ids in:\n%s", resp.ContextString)
	}
}
