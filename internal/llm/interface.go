// Package llm abstracts the text generation backends used for advisory commentary.
package llm

import "context"

// Provider generates text from a prompt
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}

// Prompt is a single-turn request: a system role plus one user message
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion holds the generated text
type Completion struct {
	Text       string
	Model      string
	StopReason string
	Usage      Usage
}

// Usage tracks token consumption
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// DefaultMaxTokens bounds a completion when the prompt sets no limit
const DefaultMaxTokens = 1024

// MaxTokensOrDefault returns p.MaxTokens or DefaultMaxTokens when unset
func (p Prompt) MaxTokensOrDefault() int {
	if p.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return p.MaxTokens
}
