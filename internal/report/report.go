// Package report packages an evaluation result for display and publication.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/cyclewatch/internal/alert"
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/cycle"
	"github.com/newthinker/cyclewatch/internal/indicator"
	"github.com/newthinker/cyclewatch/internal/signal"
)

const dateLayout = "2006-01-02"

// Report is one published evaluation
type Report struct {
	ID          string                `json:"id"`
	GeneratedAt time.Time             `json:"generated_at"`
	Asset       string                `json:"asset"`
	Currency    string                `json:"currency"`
	Regime      core.Regime           `json:"regime"`
	Record      signal.AnalysisRecord `json:"record"`

	AccumulationSpans []indicator.Span `json:"accumulation_spans,omitempty"`
	DistributionSpans []indicator.Span `json:"distribution_spans,omitempty"`
	Events            []cycle.Event    `json:"events,omitempty"`
	Alerts            []alert.Alert    `json:"alerts,omitempty"`

	Advice         string `json:"advice,omitempty"`
	AdviceProvider string `json:"advice_provider,omitempty"`
	AdviceError    string `json:"advice_error,omitempty"`
}

// New builds a report from an engine result
func New(result *cycle.Result, generatedAt time.Time) *Report {
	times := result.Price.Times()
	return &Report{
		ID:                uuid.NewString(),
		GeneratedAt:       generatedAt.UTC(),
		Asset:             result.Record.Asset,
		Currency:          result.Record.Currency,
		Regime:            result.Regime(),
		Record:            result.Record,
		AccumulationSpans: result.Accumulation.Spans(times),
		DistributionSpans: result.Distribution.Spans(times),
		Events:            result.Events,
	}
}

// SetAdvice attaches advisory text, or the reason it is missing
func (r *Report) SetAdvice(text, provider string, err error) {
	r.AdviceProvider = provider
	if err != nil {
		r.Advice = ""
		r.AdviceError = err.Error()
		return
	}
	r.Advice = text
	r.AdviceError = ""
}

// Key is the archive key of the report: <asset>/<YYYY-MM-DD>.json
func (r *Report) Key() string {
	return KeyFor(r.Asset, r.Record.At)
}

// KeyFor builds the archive key for an asset and evaluation date
func KeyFor(asset string, at time.Time) string {
	return fmt.Sprintf("%s/%s.json", strings.ToLower(asset), at.UTC().Format(dateLayout))
}

// JSON encodes the report with indentation
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteText renders the report for a terminal
func WriteText(w io.Writer, r *Report) error {
	rec := r.Record
	cur := strings.ToUpper(rec.Currency)

	fmt.Fprintf(w, "%s (%s) as of %s\n", r.Asset, cur, rec.At.UTC().Format(dateLayout))
	fmt.Fprintf(w, "Regime: %s\n\n", strings.ToUpper(string(r.Regime)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE\tDIFF\tDIFF %")
	fmt.Fprintf(tw, "Price\t%.2f\t\t\n", rec.CurrentPrice)
	fmt.Fprintf(tw, "%d-day mean\t%.2f\t%+.2f\t%+.2f%%\n", rec.Window, rec.RollingMean, rec.DiffRolling, rec.DiffRollingPct)
	fmt.Fprintf(tw, "Band (x%g)\t%.2f\t%+.2f\t%+.2f%%\n", rec.Multiplier, rec.Band, rec.DiffBand, rec.DiffBandPct)
	fmt.Fprintf(tw, "Volume\t%.2f\t%+.2f\t%+.2f%%\n", rec.CurrentVolume, rec.DiffVolume, rec.DiffVolumePct)
	fmt.Fprintf(tw, "%d-day volume mean\t%.2f\t\t\n", rec.VolumeWindowDays, rec.VolumeMean)
	fmt.Fprintf(tw, "Fear & Greed\t%s\t\t\n", rec.Sentiment)
	if err := tw.Flush(); err != nil {
		return err
	}

	writeSpans(w, "Accumulation", r.AccumulationSpans)
	writeSpans(w, "Distribution", r.DistributionSpans)

	if len(r.Events) > 0 {
		fmt.Fprintln(w, "\nEvents:")
		for _, e := range r.Events {
			fmt.Fprintf(w, "  %s  %s\n", e.Time.UTC().Format(dateLayout), e.Name)
		}
	}

	if len(r.Alerts) > 0 {
		fmt.Fprintln(w, "\nAlerts:")
		for _, a := range r.Alerts {
			fmt.Fprintf(w, "  %s\n", a.Message)
		}
	}

	switch {
	case r.Advice != "":
		fmt.Fprintf(w, "\nAdvice (%s):\n%s\n", r.AdviceProvider, r.Advice)
	case r.AdviceError != "":
		fmt.Fprintf(w, "\nAdvice unavailable: %s\n", r.AdviceError)
	}
	return nil
}

func writeSpans(w io.Writer, label string, spans []indicator.Span) {
	if len(spans) == 0 {
		fmt.Fprintf(w, "\n%s periods: none\n", label)
		return
	}

	days := 0
	for _, s := range spans {
		days += s.Count
	}
	fmt.Fprintf(w, "\n%s periods: %d (%d days)\n", label, len(spans), days)
	for _, s := range spans {
		fmt.Fprintf(w, "  %s .. %s  %d days\n", s.Start.UTC().Format(dateLayout), s.End.UTC().Format(dateLayout), s.Count)
	}
}
