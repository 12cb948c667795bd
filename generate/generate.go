// Package generate defines the text-generation collaborator contract used for
// query reformulation, document title generation, and the faithfulness audit.
// Prose generation itself happens outside this module; implementations live
// under contrib/generate.
package generate

import "context"

// Request is a single prompt-string generation call.
type Request struct {
	// System sets the system prompt; may be empty.
	System string
	// Prompt is the user-turn content.
	Prompt string
	// Deterministic requests temperature-0 sampling. Required for audit calls
	// so verdicts are reproducible.
	Deterministic bool
	// MaxTokens caps the completion length; 0 uses the provider default.
	MaxTokens int
}

// Client produces text for a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
