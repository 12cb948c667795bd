// Package reformulate expands a therapist query into clinical-terminology
// variants for multi-query retrieval. Reformulation is best-effort: it never
// fails the pipeline, degrading to the original query alone.
package reformulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thomassleeman/therapy-app-sub000/generate"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
)

// variantCount is the number of alternate phrasings requested per query.
const variantCount = 3

const systemPrompt = "You rewrite a therapist's question as search queries over a clinical knowledge base " +
	"covering legislation, professional guidelines, therapeutic techniques, and clinical practice. " +
	"Produce alternative phrasings using the clinical, legal, or therapeutic terminology the source " +
	"documents themselves would use. Reply with JSON only: {\"queries\": [\"...\"]}."

// Reformulator generates query variants through a text-generation collaborator.
type Reformulator struct {
	client  generate.Client
	enabled bool
	logger  *slog.Logger
}

// Option customises the reformulator.
type Option func(*Reformulator)

// WithEnabled toggles reformulation; when disabled Reformulate returns the
// original query without any external call.
func WithEnabled(enabled bool) Option {
	return func(r *Reformulator) {
		r.enabled = enabled
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reformulator) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a reformulator. A nil client behaves as if disabled.
func New(client generate.Client, opts ...Option) *Reformulator {
	r := &Reformulator{
		client: client,
		logger: logging.WithComponent("reformulate"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reformulate returns the original query followed by up to three clinical
// rephrasings. The original is always first. Category and modality hint the
// generator towards the right register; either may be empty.
func (r *Reformulator) Reformulate(ctx context.Context, query, category, modality string) []string {
	base := []string{query}
	if !r.enabled || r.client == nil {
		return base
	}

	prompt := buildPrompt(query, category, modality)
	raw, err := r.client.Generate(ctx, generate.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		r.logger.Warn("query reformulation failed, using original query", "error", err)
		return base
	}

	variants := parseVariants(raw)
	if len(variants) == 0 {
		r.logger.Warn("query reformulation returned no usable variants")
		return base
	}
	if len(variants) > variantCount {
		variants = variants[:variantCount]
	}
	r.logger.Debug("query reformulated", "variants", len(variants))
	return append(base, variants...)
}

func buildPrompt(query, category, modality string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query:\n%s\n", query)
	if category != "" {
		fmt.Fprintf(&b, "\nKnowledge base category: %s\n", category)
	}
	if modality != "" {
		fmt.Fprintf(&b, "\nTherapeutic modality: %s\n", modality)
	}
	fmt.Fprintf(&b, "\nReturn exactly %d alternative phrasings as JSON.", variantCount)
	return b.String()
}

type variantPayload struct {
	Queries []string `json:"queries"`
}

// parseVariants accepts the JSON contract first and falls back to splitting
// plain lines, since smaller models sometimes ignore format instructions.
func parseVariants(raw string) []string {
	cleaned := stripCodeFences(raw)

	var payload variantPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil && len(payload.Queries) > 0 {
		return trimNonEmpty(payload.Queries)
	}

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" && !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, "}") {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
