// Package openai implements the text-generation contract on OpenAI's chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/thomassleeman/therapy-app-sub000/generate"
)

const defaultModel = "gpt-4o-mini"

// Client generates text with OpenAI chat completions.
type Client struct {
	client openaisdk.Client
	model  string
}

// Option customises the client.
type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New creates an OpenAI generation client. baseURL may be empty.
func New(apiKey, baseURL string, opts ...Option) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	c := &Client{
		client: openaisdk.NewClient(reqOpts...),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate implements generate.Client.
func (c *Client) Generate(ctx context.Context, req generate.Request) (string, error) {
	var messages []openaisdk.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	messages = append(messages, openaisdk.UserMessage(req.Prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.model),
		Messages: messages,
	}
	if req.Deterministic {
		params.Temperature = param.NewOpt(0.0)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
