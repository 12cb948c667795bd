package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/thomassleeman/therapy-app-sub000/generate"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
	lastReq  generate.Request
}

func (s *stubGenerator) Generate(_ context.Context, req generate.Request) (string, error) {
	s.calls++
	s.lastReq = req
	return s.response, s.err
}

func evidence() []knowledge.ScoredChunk {
	return []knowledge.ScoredChunk{
		{
			ID:            "c1",
			DocumentTitle: "Working with Safeguarding Concerns",
			Content:       "A referral must be made when a child is at risk of significant harm.",
		},
	}
}

func TestAuditDisabledReturnsNil(t *testing.T) {
	gen := &stubGenerator{}
	a := New(gen)

	if report := a.Audit(context.Background(), "answer", evidence()); report != nil {
		t.Fatalf("disabled auditor returned %+v", report)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times while disabled", gen.calls)
	}
}

func TestAuditNilClientReturnsNil(t *testing.T) {
	a := New(nil, WithEnabled(true))
	if report := a.Audit(context.Background(), "answer", evidence()); report != nil {
		t.Fatalf("client-less auditor returned %+v", report)
	}
}

func TestAuditNothingToAudit(t *testing.T) {
	gen := &stubGenerator{}
	a := New(gen, WithEnabled(true))

	report := a.Audit(context.Background(), "   ", evidence())
	if report == nil || report.Verdict != VerdictUnverifiable {
		t.Fatalf("blank answer: report = %+v", report)
	}
	report = a.Audit(context.Background(), "answer", nil)
	if report == nil || report.Verdict != VerdictUnverifiable {
		t.Fatalf("no evidence: report = %+v", report)
	}
	if gen.calls != 0 {
		t.Fatalf("generator called %d times with nothing to audit", gen.calls)
	}
}

func TestAuditFaithfulVerdict(t *testing.T) {
	gen := &stubGenerator{response: `{"verdict": "faithful"}`}
	a := New(gen, WithEnabled(true))

	report := a.Audit(context.Background(), "Referrals are required when a child is at risk.", evidence())
	if report == nil || report.Verdict != VerdictFaithful {
		t.Fatalf("report = %+v", report)
	}
	if !gen.lastReq.Deterministic {
		t.Fatal("audit call must request deterministic sampling")
	}
	if !strings.Contains(gen.lastReq.Prompt, "Working with Safeguarding Concerns") {
		t.Fatal("prompt missing evidence title")
	}
	if !strings.Contains(gen.lastReq.Prompt, "Referrals are required") {
		t.Fatal("prompt missing answer under audit")
	}
}

func TestAuditUnfaithfulVerdictWithClaims(t *testing.T) {
	gen := &stubGenerator{response: "```json\n" +
		`{"verdict": "unfaithful", "unsupported_claims": ["therapists must report within 24 hours"]}` +
		"\n```"}
	a := New(gen, WithEnabled(true))

	report := a.Audit(context.Background(), "answer", evidence())
	if report == nil || report.Verdict != VerdictUnfaithful {
		t.Fatalf("report = %+v", report)
	}
	if len(report.UnsupportedClaims) != 1 {
		t.Fatalf("UnsupportedClaims = %v", report.UnsupportedClaims)
	}
}

func TestAuditGeneratorErrorIsUnverifiable(t *testing.T) {
	gen := &stubGenerator{err: errors.New("provider down")}
	a := New(gen, WithEnabled(true))

	report := a.Audit(context.Background(), "answer", evidence())
	if report == nil || report.Verdict != VerdictUnverifiable {
		t.Fatalf("report = %+v", report)
	}
	if !strings.Contains(report.Notes, "provider down") {
		t.Fatalf("Notes = %q", report.Notes)
	}
}

func TestAuditUnparseableOutputIsUnverifiable(t *testing.T) {
	for _, response := range []string{
		"I could not decide.",
		`{"verdict": "plausible"}`,
	} {
		gen := &stubGenerator{response: response}
		a := New(gen, WithEnabled(true))

		report := a.Audit(context.Background(), "answer", evidence())
		if report == nil || report.Verdict != VerdictUnverifiable {
			t.Fatalf("response %q: report = %+v", response, report)
		}
	}
}
