package ingest

import (
	"strings"
	"testing"
)

func TestSplitShortTextSingleSpan(t *testing.T) {
	text := "A single short paragraph."
	spans := newRecursiveSplitter(100, 20, nil).Split(text)
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Start != 0 || spans[0].End != len(text) {
		t.Fatalf("expected full-text span, got %+v", spans[0])
	}
}

func TestSplitEmptyText(t *testing.T) {
	if spans := newRecursiveSplitter(100, 20, nil).Split("   \n\n  "); spans != nil {
		t.Fatalf("expected nil for whitespace-only text, got %v", spans)
	}
}

func TestSplitOffsetsReproduceContent(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Paragraph about clinical practice and supervision requirements.\n\n")
	}
	text := b.String()

	spans := newRecursiveSplitter(200, 40, nil).Split(text)
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans, got %d", len(spans))
	}
	for i, span := range spans {
		content := text[span.Start:span.End]
		if strings.TrimSpace(content) != content {
			t.Fatalf("span %d offsets include surrounding whitespace: %q", i, content)
		}
		if content == "" {
			t.Fatalf("span %d is empty", i)
		}
	}
}

func TestSplitRespectsChunkSizeAtParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 30) // 150 chars
	text := para + "\n\n" + para + "\n\n" + para

	spans := newRecursiveSplitter(200, 0, nil).Split(text)
	for i, span := range spans {
		if span.size() > 200 {
			t.Fatalf("span %d size %d exceeds chunk size", i, span.size())
		}
	}
	if len(spans) < 2 {
		t.Fatalf("expected text split across spans, got %d", len(spans))
	}
}

func TestSplitPrefersHigherPrioritySeparator(t *testing.T) {
	first := strings.Repeat("a", 80)
	second := strings.Repeat("b", 80)
	text := first + "\n\n" + second

	spans := newRecursiveSplitter(100, 0, nil).Split(text)
	if len(spans) != 2 {
		t.Fatalf("expected split at paragraph break, got %d spans", len(spans))
	}
	if got := text[spans[0].Start:spans[0].End]; got != first {
		t.Fatalf("expected first paragraph intact, got %q", got)
	}
	if got := text[spans[1].Start:spans[1].End]; got != second {
		t.Fatalf("expected second paragraph intact, got %q", got)
	}
}

func TestSplitFallsBackToHardWindows(t *testing.T) {
	text := strings.Repeat("x", 500) // no separators at all
	spans := newRecursiveSplitter(200, 50, nil).Split(text)
	if len(spans) < 3 {
		t.Fatalf("expected several hard windows, got %d", len(spans))
	}
	for i, span := range spans {
		if span.size() > 200 {
			t.Fatalf("window %d size %d exceeds chunk size", i, span.size())
		}
	}
	if spans[len(spans)-1].End != 500 {
		t.Fatalf("expected last window to reach text end, got %d", spans[len(spans)-1].End)
	}
}

func TestSplitOverlapSharesContext(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString(strings.Repeat("s", 90))
		b.WriteString("\n\n")
	}
	text := b.String()

	spans := newRecursiveSplitter(200, 50, nil).Split(text)
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans, got %d", len(spans))
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start >= spans[i-1].End {
			t.Fatalf("spans %d and %d do not overlap: %+v %+v",
				i-1, i, spans[i-1], spans[i])
		}
	}
}

func TestSplitNeverCutsRunes(t *testing.T) {
	text := strings.Repeat("é", 300) // two bytes per rune, no separators
	spans := newRecursiveSplitter(101, 25, nil).Split(text)
	for i, span := range spans {
		content := text[span.Start:span.End]
		if !utf8Valid(content) {
			t.Fatalf("span %d cuts a rune: %q", i, content)
		}
	}
}

func utf8Valid(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}
