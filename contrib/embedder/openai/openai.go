// Package openai embeds text with OpenAI's embedding API at the corpus's
// fixed 512 dimensions. The Dimensions request parameter is always sent:
// query vectors and stored chunk vectors must agree exactly or similarity
// scores are meaningless.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/thomassleeman/therapy-app-sub000/config"
)

const defaultModel = openaisdk.EmbeddingModelTextEmbedding3Small

// Embedder calls OpenAI's embedding endpoint. It serves both single-query
// embedding at retrieval time and batch embedding at ingestion time.
type Embedder struct {
	client openaisdk.Client
	model  openaisdk.EmbeddingModel
}

// Option customises the embedder.
type Option func(*Embedder)

// WithModel overrides the default embedding model.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = openaisdk.EmbeddingModel(model)
		}
	}
}

// New creates an OpenAI embedder. baseURL may be empty for the public API.
func New(apiKey, baseURL string, opts ...Option) *Embedder {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	e := &Embedder{
		client: openaisdk.NewClient(reqOpts...),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed converts one text to a 512-dimension vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts in one API call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model:      e.model,
		Dimensions: param.NewOpt(int64(config.EmbeddingDimension)),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for i, emb := range resp.Data {
		out[i] = convertVector(emb.Embedding)
	}
	return out, nil
}

func convertVector(input []float64) []float32 {
	vec := make([]float32, config.EmbeddingDimension)
	for i := 0; i < len(input) && i < len(vec); i++ {
		vec[i] = float32(input[i])
	}
	return vec
}
