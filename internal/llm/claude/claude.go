package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/llm"
)

const defaultModel = "claude-sonnet-4-20250514"

// Provider generates advisory text with the Anthropic Messages API.
type Provider struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude provider. Extra request options, such as a base
// URL, are passed through to the SDK client.
func New(apiKey, model string, opts ...option.RequestOption) (*Provider, error) {
	if apiKey == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "claude API key required")
	}
	if model == "" {
		model = defaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Provider{client: anthropic.NewClient(opts...), model: model}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "claude"
}

// Complete sends the prompt as a single user message.
func (p *Provider) Complete(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(prompt.MaxTokensOrDefault()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	}
	if prompt.Temperature > 0 {
		params.Temperature = anthropic.Float(prompt.Temperature)
	}
	if prompt.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: prompt.System},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, core.WrapError(core.ErrLLMFailed, fmt.Errorf("claude API error: %w", err))
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &llm.Completion{
		Text:       text.String(),
		Model:      string(resp.Model),
		StopReason: string(resp.StopReason),
		Usage: llm.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
