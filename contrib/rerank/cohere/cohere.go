// Package cohere implements cross-encoder reranking against Cohere's ReRank
// API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thomassleeman/therapy-app-sub000/rerank"
)

const defaultEndpoint = "https://api.cohere.com/v1/rerank"

// Client calls Cohere's ReRank API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
	endpoint   string
}

// Option customises the Cohere client.
type Option func(*Client)

// WithModel overrides the default model (rerank-english-v3.0).
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient swaps the HTTP client, useful for timeouts or proxies.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// New creates a Cohere reranking client.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      "rerank-english-v3.0",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   defaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements rerank.Client. Errors propagate to the caller, which
// treats any failure as passthrough rather than a hard stop.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]rerank.Ranking, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	body, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cohere rerank failed: status %d", resp.StatusCode)
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, err
	}

	rankings := make([]rerank.Ranking, 0, len(rr.Results))
	for _, res := range rr.Results {
		rankings = append(rankings, rerank.Ranking{
			OriginalIndex: res.Index,
			Score:         res.RelevanceScore,
		})
	}
	return rankings, nil
}
