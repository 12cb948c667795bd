package ingest

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for chunk metadata. It uses the
// cl100k_base encoding when the vocabulary can be loaded and falls back to a
// characters-over-four heuristic otherwise, so ingestion still works offline.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

func (t *TokenCounter) Estimate(text string) int {
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}
