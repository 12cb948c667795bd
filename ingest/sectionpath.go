package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// maxHeadingLevel caps how deep the section trail goes. Levels beyond h4 are
// formatting, not structure, in this corpus.
const maxHeadingLevel = 4

type heading struct {
	level  int
	text   string
	offset int // byte offset of the heading line in the source
}

// scanHeadings walks the markdown AST and records every heading up to
// maxHeadingLevel with its byte offset, in document order.
func scanHeadings(source string) []heading {
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(src))

	var headings []heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > maxHeadingLevel {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := lines.At(0)
		headings = append(headings, heading{
			level:  h.Level,
			text:   strings.TrimSpace(string(headingText(h, src))),
			offset: seg.Start,
		})
		return ast.WalkContinue, nil
	})
	return headings
}

func headingText(h *ast.Heading, src []byte) []byte {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return []byte(b.String())
}

// sectionPathAt returns the heading trail in effect at the given byte offset,
// joined with " > ". A heading at level n clears every recorded heading at
// level n or deeper before taking its slot.
func sectionPathAt(headings []heading, offset int) string {
	trail := make([]string, maxHeadingLevel+1)
	for _, h := range headings {
		if h.offset > offset {
			break
		}
		for lvl := h.level; lvl <= maxHeadingLevel; lvl++ {
			trail[lvl] = ""
		}
		trail[h.level] = h.text
	}
	parts := make([]string, 0, maxHeadingLevel)
	for _, t := range trail {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " > ")
}
