package ingest

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/thomassleeman/therapy-app-sub000/corpus"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

const frontmatterFence = "---"

type frontmatter struct {
	Title         string   `yaml:"title"`
	Category      string   `yaml:"category"`
	Jurisdiction  string   `yaml:"jurisdiction"`
	Modality      string   `yaml:"modality"`
	Source        string   `yaml:"source"`
	Version       string   `yaml:"version"`
	URL           string   `yaml:"url"`
	EffectiveDate string   `yaml:"effective_date"`
	Tags          []string `yaml:"tags"`
}

// ParseDocument splits a source file into its YAML frontmatter and body. The
// frontmatter must open the file with a "---" fence and declare a known
// category; anything else fails the whole document so bad metadata never
// reaches the store.
func ParseDocument(raw string) (corpus.Document, string, error) {
	rest, ok := strings.CutPrefix(raw, frontmatterFence+"\n")
	if !ok {
		return corpus.Document{}, "", fmt.Errorf("ingest: document has no frontmatter")
	}
	head, body, ok := strings.Cut(rest, "\n"+frontmatterFence)
	if !ok {
		return corpus.Document{}, "", fmt.Errorf("ingest: unterminated frontmatter")
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return corpus.Document{}, "", fmt.Errorf("ingest: parse frontmatter: %w", err)
	}
	if fm.Title == "" {
		return corpus.Document{}, "", fmt.Errorf("ingest: frontmatter missing title")
	}
	category, err := knowledge.ParseDocumentType(fm.Category)
	if err != nil {
		return corpus.Document{}, "", fmt.Errorf("ingest: %w", err)
	}
	doc := corpus.Document{
		Title:         fm.Title,
		Category:      category,
		Jurisdiction:  fm.Jurisdiction,
		Modality:      fm.Modality,
		Source:        fm.Source,
		Version:       fm.Version,
		URL:           fm.URL,
		EffectiveDate: fm.EffectiveDate,
		Tags:          fm.Tags,
	}
	return doc, strings.TrimPrefix(body, "\n"), nil
}
