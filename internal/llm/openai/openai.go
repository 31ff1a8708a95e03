package openai

import (
	"context"
	"fmt"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/llm"
	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o"

// Provider generates advisory text with the OpenAI chat completions API.
type Provider struct {
	client *openai.Client
	model  string
}

// New creates a new OpenAI provider. A non-empty baseURL targets an
// OpenAI-compatible endpoint instead of api.openai.com.
func New(apiKey, model, baseURL string) (*Provider, error) {
	if apiKey == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "openai API key required")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Complete sends the system and user messages as one chat completion.
func (p *Provider) Complete(ctx context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   prompt.MaxTokensOrDefault(),
		Temperature: float32(prompt.Temperature),
	})
	if err != nil {
		return nil, core.WrapError(core.ErrLLMFailed, fmt.Errorf("openai API error: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, core.Errorf(core.ErrLLMFailed, "openai returned no choices")
	}

	choice := resp.Choices[0]
	return &llm.Completion{
		Text:       choice.Message.Content,
		Model:      resp.Model,
		StopReason: string(choice.FinishReason),
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
