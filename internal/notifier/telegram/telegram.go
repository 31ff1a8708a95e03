package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/notifier"
	"github.com/newthinker/cyclewatch/internal/report"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}
	if base, ok := cfg.Params["api_base"].(string); ok {
		t.apiBase = strings.TrimSuffix(base, "/")
	}
	if t.apiBase == "" {
		t.apiBase = defaultAPIBase
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	if t.botToken == "" {
		return core.Errorf(core.ErrConfigMissing, "telegram: bot_token is required")
	}
	if t.chatID == "" {
		return core.Errorf(core.ErrConfigMissing, "telegram: chat_id is required")
	}

	return nil
}

func (t *Telegram) Send(ctx context.Context, r *report.Report) error {
	return t.sendMessage(ctx, t.formatReport(r))
}

func (t *Telegram) SendBatch(ctx context.Context, reports []*report.Report) error {
	if len(reports) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *%d Cycle Reports*\n\n", len(reports)))

	for i, r := range reports {
		sb.WriteString(t.formatReport(r))
		if i < len(reports)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return t.sendMessage(ctx, sb.String())
}

func (t *Telegram) formatReport(r *report.Report) string {
	var sb strings.Builder
	rec := r.Record

	regimeEmoji := "⚪"
	switch r.Regime {
	case core.RegimeAccumulation:
		regimeEmoji = "🟢"
	case core.RegimeDistribution:
		regimeEmoji = "🔴"
	}

	sb.WriteString(fmt.Sprintf("%s *%s* - %s\n", regimeEmoji, escapeMarkdown(r.Asset), r.Regime))
	sb.WriteString(fmt.Sprintf("💰 Price: %.2f %s\n", rec.CurrentPrice, strings.ToUpper(rec.Currency)))
	sb.WriteString(fmt.Sprintf("📈 %d-day mean: %.2f (%+.2f%%)\n", rec.Window, rec.RollingMean, rec.DiffRollingPct))
	sb.WriteString(fmt.Sprintf("🚀 Band x%g: %.2f (%+.2f%%)\n", rec.Multiplier, rec.Band, rec.DiffBandPct))
	sb.WriteString(fmt.Sprintf("📦 Volume vs %d-day mean: %+.2f%%\n", rec.VolumeWindowDays, rec.DiffVolumePct))
	sb.WriteString(fmt.Sprintf("😱 Fear & Greed: %s\n", rec.Sentiment))

	for _, a := range r.Alerts {
		sb.WriteString(fmt.Sprintf("🚨 %s\n", escapeMarkdown(a.Message)))
	}

	if r.Advice != "" {
		sb.WriteString(fmt.Sprintf("💡 %s\n", escapeMarkdown(r.Advice)))
	}

	sb.WriteString(fmt.Sprintf("⏰ Date: %s", rec.At.UTC().Format("2006-01-02")))

	return sb.String()
}

// markdownEscaper covers the entities of Telegram's legacy Markdown mode.
var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// escapeMarkdown makes free text such as LLM advice safe to embed in a
// Markdown message.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return core.WrapError(core.ErrNotifyFailed, fmt.Errorf("telegram: failed to send message: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return core.Errorf(core.ErrNotifyFailed, "telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
