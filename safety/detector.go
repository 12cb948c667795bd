// Package safety screens therapist messages for safety-relevant topics before
// retrieval routing. Detection gates the confidence router: a sensitive topic
// changes how low- and moderate-confidence retrievals are answered.
package safety

import (
	"regexp"
	"strings"
)

// Detection is the result of screening one user message.
type Detection struct {
	// Categories holds the detected categories in stable table order.
	Categories []Category
	// AdditionalInstructions is the concatenation of the detected categories'
	// instruction blocks, separated by blank lines. Empty when nothing fired.
	AdditionalInstructions string
	// AutoSearchQueries collects every detected category's auto-search queries
	// in order. Categories may contribute overlapping queries; no deduplication.
	AutoSearchQueries []AutoSearchQuery
}

// HasCategory reports whether the given category was detected.
func (d Detection) HasCategory(c Category) bool {
	for _, got := range d.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// CategoryStrings returns the detected categories as plain strings, the form
// the router and orchestrator consume.
func (d Detection) CategoryStrings() []string {
	out := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		out[i] = string(c)
	}
	return out
}

// Detector matches a fixed table of phrases and keywords against user text.
// It holds compiled word-boundary patterns and is safe for concurrent use.
type Detector struct {
	defs            []categoryDefinition
	keywordPatterns map[Category][]*regexp.Regexp
}

// NewDetector compiles the category table into a ready detector.
func NewDetector() *Detector {
	d := &Detector{
		defs:            categoryTable,
		keywordPatterns: make(map[Category][]*regexp.Regexp, len(categoryTable)),
	}
	for _, def := range categoryTable {
		patterns := make([]*regexp.Regexp, 0, len(def.keywords))
		for _, kw := range def.keywords {
			// Keywords are matched against the lowercased message, so the
			// pattern itself needs no case flag. QuoteMeta keeps keywords with
			// punctuation (hyphens, dots) from becoming regex syntax.
			patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(kw))+`\b`))
		}
		d.keywordPatterns[def.category] = patterns
	}
	return d
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Detect screens a message. Empty or whitespace-only input yields an empty
// detection; the three categories are independent and may all co-occur.
func (d *Detector) Detect(message string) Detection {
	normalized := normalize(message)
	if normalized == "" {
		return Detection{}
	}

	var det Detection
	var instructionBlocks []string
	for _, def := range d.defs {
		if !d.matches(def, normalized) {
			continue
		}
		det.Categories = append(det.Categories, def.category)
		instructionBlocks = append(instructionBlocks, def.instructions)
		det.AutoSearchQueries = append(det.AutoSearchQueries, def.autoSearches...)
	}
	det.AdditionalInstructions = strings.Join(instructionBlocks, "\n\n")
	return det
}

func (d *Detector) matches(def categoryDefinition, normalized string) bool {
	for _, phrase := range def.phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	for _, pattern := range d.keywordPatterns[def.category] {
		if pattern.MatchString(normalized) {
			return true
		}
	}
	return false
}

// normalize lowercases, collapses all whitespace runs (including newlines and
// tabs) to single spaces, and trims.
func normalize(message string) string {
	lowered := strings.ToLower(message)
	collapsed := whitespaceRun.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(collapsed)
}
