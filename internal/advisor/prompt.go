package advisor

import (
	"fmt"
	"math"
	"strings"

	"github.com/newthinker/cyclewatch/internal/llm"
	"github.com/newthinker/cyclewatch/internal/signal"
)

// DefaultLanguage is used when no answer language is requested
const DefaultLanguage = "English"

const systemPrompt = "You are an AI trained to analyze the cryptocurrency market and recommend actions based on specific market data and indicators."

// BuildPrompt renders a record into the two-strategy advisory request
func BuildPrompt(rec signal.AnalysisRecord, language string) llm.Prompt {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}

	average := averageName(rec.Window)

	var sb strings.Builder
	sb.WriteString("Based on the analysis of the cryptocurrency market with the following data: ")
	fmt.Fprintf(&sb, "Current price of %s is %s, ", displayName(rec.Asset), formatPrice(rec.CurrentPrice, rec.Currency))
	fmt.Fprintf(&sb, "the price is %.2f%% %s the %s, ", math.Abs(rec.DiffRollingPct), direction(rec.DiffRollingPct), average)
	fmt.Fprintf(&sb, "the price is %.2f%% %s the %s multiplied by %s, ",
		math.Abs(rec.DiffBandPct), direction(rec.DiffBandPct), average, formatNumber(rec.Multiplier))
	fmt.Fprintf(&sb, "the trading volume has changed by %.2f%% compared to the %d-day average, ",
		rec.DiffVolumePct, rec.VolumeWindowDays)
	fmt.Fprintf(&sb, "and the Fear and Greed Index is at %s. ", rec.Sentiment)
	sb.WriteString("Given this data, provide a concise analysis for both a conservative, long-term investment strategy " +
		"and an aggressive, short-term investment strategy. ")
	sb.WriteString("If you mention any index, please specify its value. ")
	sb.WriteString("Conclude each strategy's analysis with a headline summarizing your recommendation. ")
	sb.WriteString("Please aim for a maximum of 20 words per strategy. ")
	fmt.Fprintf(&sb, "Please provide the analysis in %s.", language)

	return llm.Prompt{System: systemPrompt, User: sb.String()}
}

func direction(pct float64) string {
	if pct > 0 {
		return "above"
	}
	return "below"
}

func averageName(window int) string {
	if window > 0 && window%365 == 0 {
		return fmt.Sprintf("%d-year moving average", window/365)
	}
	return fmt.Sprintf("%d-day moving average", window)
}

func displayName(asset string) string {
	if asset == "" {
		return "the asset"
	}
	words := strings.FieldsFunc(asset, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatPrice(v float64, currency string) string {
	switch strings.ToLower(currency) {
	case "", "usd":
		return fmt.Sprintf("$%.2f", v)
	default:
		return fmt.Sprintf("%.2f %s", v, strings.ToUpper(currency))
	}
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
