// Package advisor turns an analysis record into short investment commentary
// through a configured LLM provider.
package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/llm"
	"github.com/newthinker/cyclewatch/internal/signal"
	"go.uber.org/zap"
)

// Generator produces advisory text for a record
type Generator interface {
	Advise(ctx context.Context, rec signal.AnalysisRecord, language string) (string, error)
}

// Config tunes the completion request
type Config struct {
	Language    string
	MaxTokens   int
	Temperature float64
}

// Advisor implements Generator on top of an llm.Provider
type Advisor struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// New creates an advisor. The provider is required.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) (*Advisor, error) {
	if provider == nil {
		return nil, core.Errorf(core.ErrConfigMissing, "advisor needs an LLM provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Advisor{provider: provider, cfg: cfg, logger: logger}, nil
}

// Provider returns the name of the backing LLM provider
func (a *Advisor) Provider() string {
	return a.provider.Name()
}

// Advise asks the provider for commentary on rec. An empty language falls
// back to the configured one.
func (a *Advisor) Advise(ctx context.Context, rec signal.AnalysisRecord, language string) (string, error) {
	if language == "" {
		language = a.cfg.Language
	}

	prompt := BuildPrompt(rec, language)
	prompt.MaxTokens = a.cfg.MaxTokens
	prompt.Temperature = a.cfg.Temperature

	start := time.Now()
	out, err := a.provider.Complete(ctx, prompt)
	if err != nil {
		a.logger.Error("advisory completion failed",
			zap.String("provider", a.provider.Name()),
			zap.String("asset", rec.Asset),
			zap.Error(err))
		return "", err
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", core.WrapError(core.ErrLLMFailed, fmt.Errorf("%s returned an empty completion", a.provider.Name()))
	}

	a.logger.Debug("advisory completion",
		zap.String("provider", a.provider.Name()),
		zap.String("model", out.Model),
		zap.String("asset", rec.Asset),
		zap.Int("input_tokens", out.Usage.InputTokens),
		zap.Int("output_tokens", out.Usage.OutputTokens),
		zap.Duration("duration", time.Since(start)))

	return text, nil
}
