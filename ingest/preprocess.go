package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes a document body before chunking: control characters
// go, common PDF/OCR ligatures are repaired, and whitespace is collapsed.
// Offsets recorded by the chunker refer to this cleaned text.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	// Tabs and newlines survive this pass so the whitespace collapse below
	// sees them; every other control character is dropped outright.
	b := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	fixes := map[string]string{
		"ﬁ": "fi", "ﬂ": "fl",
		"—": "-", "–": "-",
		"•": "-",
	}
	for k, v := range fixes {
		b = strings.ReplaceAll(b, k, v)
	}

	b = spaceRuns.ReplaceAllString(b, " ")
	b = newlineRuns.ReplaceAllString(b, "\n\n")

	return strings.TrimSpace(b)
}

// HTMLToMarkdown extracts readable content from HTML source material,
// keeping headings as markdown so section paths survive conversion.
func HTMLToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var out []string
	doc.Find("h1,h2,h3,h4,p,li,blockquote,table").Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h1":
			out = append(out, "# "+strings.TrimSpace(s.Text()))
		case "h2":
			out = append(out, "## "+strings.TrimSpace(s.Text()))
		case "h3":
			out = append(out, "### "+strings.TrimSpace(s.Text()))
		case "h4":
			out = append(out, "#### "+strings.TrimSpace(s.Text()))
		case "p", "blockquote":
			out = append(out, strings.TrimSpace(s.Text()))
		case "li":
			out = append(out, "- "+strings.TrimSpace(s.Text()))
		case "table":
			out = append(out, renderTable(s))
		}
	})
	return strings.Join(out, "\n\n"), nil
}

func renderTable(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(j int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}

// dedupeParagraphs drops exact-duplicate paragraphs, which show up when web
// sources repeat boilerplate between sections.
func dedupeParagraphs(text string) string {
	parts := strings.Split(text, "\n\n")
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}

// Preprocess runs the full cleaning pipeline on a document body.
func Preprocess(raw string) string {
	return dedupeParagraphs(CleanText(raw))
}
