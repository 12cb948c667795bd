package ingest

import (
	"strings"
	"testing"
)

func TestCleanTextNormalizes(t *testing.T) {
	in := "A ﬁrst   line\twith artifacts\n\n\n\n\nNext paragraph"
	got := CleanText(in)
	if !strings.HasPrefix(got, "A first line with artifacts") {
		t.Fatalf("unexpected cleaned text: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("newline runs not collapsed: %q", got)
	}
}

func TestCleanTextCollapsesTabsToSpaces(t *testing.T) {
	got := CleanText("threshold\tcriteria\t\tstill\t apply")
	if got != "threshold criteria still apply" {
		t.Fatalf("tab runs not collapsed to single spaces: %q", got)
	}
}

func TestCleanTextKeepsSingleNewlines(t *testing.T) {
	got := CleanText("line one\nline two")
	if got != "line one\nline two" {
		t.Fatalf("expected newline preserved, got %q", got)
	}
}

func TestPreprocessDeduplicatesParagraphs(t *testing.T) {
	in := "Unique paragraph.\n\nRepeated boilerplate.\n\nRepeated boilerplate.\n\nAnother unique one."
	got := Preprocess(in)
	if strings.Count(got, "Repeated boilerplate.") != 1 {
		t.Fatalf("expected duplicate paragraph removed, got %q", got)
	}
	if !strings.Contains(got, "Unique paragraph.") || !strings.Contains(got, "Another unique one.") {
		t.Fatalf("expected unique paragraphs kept, got %q", got)
	}
}

func TestHTMLToMarkdownKeepsHeadingsAndLists(t *testing.T) {
	html := `<html><body>
		<h1>Framework</h1>
		<h2>Duties</h2>
		<p>Practitioners must keep records.</p>
		<ul><li>Accuracy</li><li>Security</li></ul>
	</body></html>`

	got, err := HTMLToMarkdown(html)
	if err != nil {
		t.Fatalf("convert error: %v", err)
	}
	if !strings.Contains(got, "# Framework") || !strings.Contains(got, "## Duties") {
		t.Fatalf("expected markdown headings in:\n%s", got)
	}
	if !strings.Contains(got, "- Accuracy") {
		t.Fatalf("expected list items in:\n%s", got)
	}
	if !strings.Contains(got, "Practitioners must keep records.") {
		t.Fatalf("expected paragraph text in:\n%s", got)
	}
}

func TestHTMLToMarkdownRendersTables(t *testing.T) {
	html := `<table><tr><th>Tier</th><th>Action</th></tr><tr><td>High</td><td>Ground</td></tr></table>`
	got, err := HTMLToMarkdown(html)
	if err != nil {
		t.Fatalf("convert error: %v", err)
	}
	if !strings.Contains(got, "| Tier | Action |") || !strings.Contains(got, "| High | Ground |") {
		t.Fatalf("expected pipe table in:\n%s", got)
	}
}
