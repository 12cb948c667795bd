// Package promptctx renders a routed result set into the structured text block
// injected into the downstream generator's prompt.
package promptctx

import (
	"fmt"
	"strings"

	"github.com/thomassleeman/therapy-app-sub000/confidence"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// DefaultMaxChunks caps how many chunks are injected into one prompt.
const DefaultMaxChunks = 5

// ModeratePreamble is prepended before the rendered chunks for moderate-tier
// sets so the generator hedges its answer.
const ModeratePreamble = "The following sources are only moderately relevant to the question. " +
	"Use them where they genuinely apply, say clearly when they do not, and avoid presenting " +
	"loosely related guidance as if it answered the question directly."

// Response is the final formatted artifact handed to the generator call.
type Response struct {
	// ContextString is ready-to-inject text: wrapped chunk blocks, a hedge
	// preamble plus blocks, or a pure fallback message.
	ContextString    string          `json:"context_string"`
	Tier             confidence.Tier `json:"tier"`
	ChunksInjected   int             `json:"chunks_injected"`
	HasQualification bool            `json:"has_qualification"`
}

// Formatter renders result sets into prompt context.
type Formatter struct {
	maxChunks int
}

// Option customises the formatter.
type Option func(*Formatter)

// WithMaxChunks overrides the chunk injection cap.
func WithMaxChunks(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.maxChunks = n
		}
	}
}

// New creates a formatter.
func New(opts ...Option) *Formatter {
	f := &Formatter{maxChunks: DefaultMaxChunks}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders the result set for the given tier. A low tier, or any tier
// that arrives without results, produces a referral message instead of chunks.
//
// Chunk bodies are deliberately left unescaped: they are prose for a language
// model, not markup for a parser. Only attribute values are XML-escaped.
func (f *Formatter) Format(tier confidence.Tier, results []knowledge.ScoredChunk, modality string) Response {
	if tier == confidence.TierLow || len(results) == 0 {
		return Response{
			ContextString:    fallbackMessage(modality),
			Tier:             tier,
			HasQualification: true,
		}
	}

	if len(results) > f.maxChunks {
		results = results[:f.maxChunks]
	}

	var b strings.Builder
	hedged := tier == confidence.TierModerate
	if hedged {
		b.WriteString(ModeratePreamble)
		b.WriteString("\n\n")
	}
	for i, chunk := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		writeChunkBlock(&b, i+1, chunk)
	}

	return Response{
		ContextString:    b.String(),
		Tier:             tier,
		ChunksInjected:   len(results),
		HasQualification: hedged,
	}
}

func writeChunkBlock(b *strings.Builder, id int, chunk knowledge.ScoredChunk) {
	fmt.Fprintf(b, `<document id="%d" title="%s"`, id, escapeAttr(chunk.DocumentTitle))
	if chunk.SectionPath != "" {
		fmt.Fprintf(b, ` section="%s"`, escapeAttr(chunk.SectionPath))
	}
	b.WriteString(">\n")
	b.WriteString(chunk.Content)
	b.WriteString("\n</document>")
}

func fallbackMessage(modality string) string {
	if modality != "" {
		return fmt.Sprintf(
			"The knowledge base does not contain guidance matching this query for %s. "+
				"Let the therapist know the curated sources do not cover it and suggest consulting "+
				"their %s literature, supervisor, or professional body directly.",
			modality, modality)
	}
	return "The knowledge base does not contain guidance matching this query. " +
		"Let the therapist know the curated sources do not cover it and suggest consulting " +
		"their supervisor or professional body directly."
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func escapeAttr(value string) string {
	return attrEscaper.Replace(value)
}
