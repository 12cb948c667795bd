// Package audit runs an optional post-hoc faithfulness check: was a generated
// answer actually supported by the chunks it was grounded on? The audit runs
// off the response path; it can flag, never block.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thomassleeman/therapy-app-sub000/generate"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
)

// Verdict summarises the audit outcome.
type Verdict string

const (
	VerdictFaithful     Verdict = "faithful"
	VerdictUnfaithful   Verdict = "unfaithful"
	VerdictUnverifiable Verdict = "unverifiable"
)

// Report is one audit result.
type Report struct {
	Verdict           Verdict  `json:"verdict"`
	UnsupportedClaims []string `json:"unsupported_claims,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

const systemPrompt = "You audit whether an answer is faithful to its source excerpts. " +
	"A claim is supported only if a source excerpt states or directly implies it. " +
	"Reply with JSON only: {\"verdict\": \"faithful|unfaithful\", " +
	"\"unsupported_claims\": [\"...\"], \"notes\": \"...\"}."

// Auditor checks answers against their evidence via a deterministic generator
// call.
type Auditor struct {
	client  generate.Client
	enabled bool
	logger  *slog.Logger
}

// Option customises the auditor.
type Option func(*Auditor)

// WithEnabled toggles the audit feature gate.
func WithEnabled(enabled bool) Option {
	return func(a *Auditor) {
		a.enabled = enabled
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an auditor. Disabled or client-less auditors skip every call.
func New(client generate.Client, opts ...Option) *Auditor {
	a := &Auditor{
		client: client,
		logger: logging.WithComponent("audit"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Audit reviews an answer against the chunks it cited. Returns nil when the
// gate is off. Generator failures and unparseable output produce an
// unverifiable report rather than an error; the audit never disturbs the
// caller's response handling.
func (a *Auditor) Audit(ctx context.Context, answer string, evidence []knowledge.ScoredChunk) *Report {
	if !a.enabled || a.client == nil {
		return nil
	}
	if strings.TrimSpace(answer) == "" || len(evidence) == 0 {
		return &Report{Verdict: VerdictUnverifiable, Notes: "nothing to audit"}
	}

	raw, err := a.client.Generate(ctx, generate.Request{
		System:        systemPrompt,
		Prompt:        buildPrompt(answer, evidence),
		Deterministic: true,
	})
	if err != nil {
		a.logger.Warn("faithfulness audit failed", "error", err)
		return &Report{Verdict: VerdictUnverifiable, Notes: fmt.Sprintf("audit call failed: %v", err)}
	}

	report, err := parseReport(raw)
	if err != nil {
		a.logger.Warn("faithfulness audit returned unparseable output", "error", err)
		return &Report{Verdict: VerdictUnverifiable, Notes: "audit output could not be parsed"}
	}
	if report.Verdict == VerdictUnfaithful {
		a.logger.Warn("answer flagged as unfaithful to its sources",
			"unsupported_claims", len(report.UnsupportedClaims))
	}
	return report
}

func buildPrompt(answer string, evidence []knowledge.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Source excerpts:\n")
	for i, chunk := range evidence {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, chunk.DocumentTitle, chunk.Content)
	}
	fmt.Fprintf(&b, "\nAnswer under audit:\n%s\n\nReturn JSON only.", answer)
	return b.String()
}

func parseReport(raw string) (*Report, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	var report Report
	if err := json.Unmarshal([]byte(cleaned), &report); err != nil {
		return nil, err
	}
	switch report.Verdict {
	case VerdictFaithful, VerdictUnfaithful, VerdictUnverifiable:
	default:
		return nil, fmt.Errorf("unknown verdict %q", report.Verdict)
	}
	return &report, nil
}
