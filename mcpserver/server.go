// Package mcpserver exposes the knowledge base as MCP tools, one search tool
// per document category. The calling assistant picks the tool; the server
// runs the full retrieval pipeline and returns a routed, formatted payload.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thomassleeman/therapy-app-sub000/audit"
	"github.com/thomassleeman/therapy-app-sub000/knowledge"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
	"github.com/thomassleeman/therapy-app-sub000/retrieval"
	"github.com/thomassleeman/therapy-app-sub000/safety"
)

// Version reported in the MCP handshake.
const Version = "1.0.0"

var toolNames = map[knowledge.DocumentType]string{
	knowledge.DocumentTypeLegislation:        "search_legislation",
	knowledge.DocumentTypeGuideline:          "search_guidelines",
	knowledge.DocumentTypeTherapeuticContent: "search_therapeutic_content",
	knowledge.DocumentTypeClinicalPractice:   "search_clinical_practice",
}

var toolDescriptions = map[knowledge.DocumentType]string{
	knowledge.DocumentTypeLegislation:        "Search mental health legislation and statutory duties relevant to therapists",
	knowledge.DocumentTypeGuideline:          "Search professional body guidelines and ethical frameworks for therapists",
	knowledge.DocumentTypeTherapeuticContent: "Search therapeutic techniques, interventions, and modality-specific content",
	knowledge.DocumentTypeClinicalPractice:   "Search clinical practice guidance: assessment, risk, referral, and record keeping",
}

// searchResult is the tool output: the routed payload plus, when the query
// touched a sensitive topic, the safety guidance the calling assistant must
// fold into its response.
type searchResult struct {
	retrieval.Payload
	Safety *safetyBlock `json:"safety,omitempty"`
}

type safetyBlock struct {
	Categories             []string                 `json:"categories"`
	AdditionalInstructions string                   `json:"additional_instructions,omitempty"`
	AutoSearchQueries      []safety.AutoSearchQuery `json:"auto_search_queries,omitempty"`
}

type searchArgs struct {
	Query        string `json:"query" jsonschema:"The practitioner's question or information need"`
	Modality     string `json:"modality,omitempty" jsonschema:"Optional therapeutic modality filter, e.g. cbt or person-centred"`
	Jurisdiction string `json:"jurisdiction,omitempty" jsonschema:"Optional jurisdiction filter, e.g. england-wales or scotland"`
}

// Server wires the retrieval pipeline into an MCP server.
type Server struct {
	orchestrator *retrieval.Orchestrator
	detector     *safety.Detector
	auditor      *audit.Auditor
	logger       *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithAuditor registers an audit_answer tool backed by the faithfulness
// auditor.
func WithAuditor(a *audit.Auditor) Option {
	return func(s *Server) { s.auditor = a }
}

// New creates the MCP tool server around an orchestrator.
func New(orchestrator *retrieval.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		detector:     safety.NewDetector(),
		logger:       logging.WithComponent("mcpserver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MCPServer builds the underlying MCP server with every category tool
// registered.
func (s *Server) MCPServer(name string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: Version,
		Title:   "Therapy knowledge base",
	}, nil)
	for _, category := range knowledge.DocumentTypes() {
		s.addSearchTool(server, category)
	}
	if s.auditor != nil {
		s.addAuditTool(server)
	}
	return server
}

// RunStdio serves MCP over stdio until the context is cancelled.
func (s *Server) RunStdio(ctx context.Context, name string) error {
	return s.MCPServer(name).Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) addSearchTool(server *mcp.Server, category knowledge.DocumentType) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        toolNames[category],
		Description: toolDescriptions[category],
	}, func(ctx context.Context, req *mcp.CallToolRequest, a searchArgs) (*mcp.CallToolResult, any, error) {
		result, err := s.search(ctx, category, a)
		if err != nil {
			return nil, nil, err
		}
		text, err := json.Marshal(result)
		if err != nil {
			return nil, nil, fmt.Errorf("encode payload: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(text)},
			},
		}, result, nil
	})
}

func (s *Server) search(ctx context.Context, category knowledge.DocumentType, a searchArgs) (searchResult, error) {
	if a.Query == "" {
		return searchResult{}, fmt.Errorf("query is required")
	}

	detection := s.detector.Detect(a.Query)
	payload := s.orchestrator.Run(ctx, retrieval.Request{
		Query:               a.Query,
		Category:            category,
		Modality:            a.Modality,
		Jurisdiction:        a.Jurisdiction,
		SensitiveCategories: detection.CategoryStrings(),
	})

	s.logger.Info("search completed",
		"tool", toolNames[category],
		"strategy", payload.Strategy,
		"tier", payload.Tier,
		"results", len(payload.Results),
		"sensitive", len(detection.Categories) > 0)

	result := searchResult{Payload: payload}
	if len(detection.Categories) > 0 {
		result.Safety = &safetyBlock{
			Categories:             detection.CategoryStrings(),
			AdditionalInstructions: detection.AdditionalInstructions,
			AutoSearchQueries:      detection.AutoSearchQueries,
		}
	}
	return result, nil
}

type auditArgs struct {
	Answer   string                  `json:"answer" jsonschema:"The drafted answer to check against its sources"`
	Evidence []knowledge.ScoredChunk `json:"evidence" jsonschema:"The retrieved chunks the answer was grounded on"`
}

func (s *Server) addAuditTool(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "audit_answer",
		Description: "Check whether a drafted answer is faithful to the knowledge base chunks it cites",
	}, func(ctx context.Context, req *mcp.CallToolRequest, a auditArgs) (*mcp.CallToolResult, any, error) {
		report := s.auditor.Audit(ctx, a.Answer, a.Evidence)
		if report == nil {
			return nil, nil, fmt.Errorf("faithfulness audit is not enabled")
		}

		s.logger.Info("audit completed",
			"verdict", report.Verdict,
			"unsupported_claims", len(report.UnsupportedClaims))

		text, err := json.Marshal(report)
		if err != nil {
			return nil, nil, fmt.Errorf("encode report: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(text)},
			},
		}, report, nil
	})
}
