// Package cycle wires the series, indicator and signal packages into the
// market cycle engine: one price/volume history in, one AnalysisRecord out.
package cycle

import (
	"fmt"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/indicator"
	"github.com/newthinker/cyclewatch/internal/series"
	"github.com/newthinker/cyclewatch/internal/signal"
	"go.uber.org/zap"
)

// SentimentLookup returns the sentiment score for a date, or an unset score
type SentimentLookup func(at time.Time) signal.Sentiment

// Input holds the data for one evaluation
type Input struct {
	Asset    string
	Currency string
	Price    series.TimeSeries
	Volume   series.TimeSeries

	// Current overrides the latest price and volume observations when set
	Current   *core.Point
	Sentiment SentimentLookup
}

// Result is the analysis record plus the decorated series for charting
type Result struct {
	Record       signal.AnalysisRecord `json:"record"`
	Price        series.TimeSeries     `json:"-"`
	Rolling      series.TimeSeries     `json:"-"`
	Band         series.TimeSeries     `json:"-"`
	Accumulation indicator.Mask        `json:"-"`
	Distribution indicator.Mask        `json:"-"`
	Events       []Event               `json:"events,omitempty"`
}

// Regime returns the regime of the current price
func (r *Result) Regime() core.Regime {
	return r.Record.Regime()
}

// Engine evaluates the cycle indicators. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an engine with validated options
func NewEngine(opts Options, logger *zap.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Multiplier <= 1 {
		logger.Warn("band multiplier does not lift the band above the rolling mean",
			zap.Float64("multiplier", opts.Multiplier))
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// Options returns the engine parameters
func (e *Engine) Options() Options {
	return e.opts
}

// Evaluate runs the full pipeline. Any stage failure aborts the evaluation;
// only the sentiment score may be missing from the record.
func (e *Engine) Evaluate(in Input) (*Result, error) {
	lastPrice, err := in.Price.Last()
	if err != nil {
		return nil, fmt.Errorf("price series: %w", err)
	}
	lastVolume, err := in.Volume.Last()
	if err != nil {
		return nil, fmt.Errorf("volume series: %w", err)
	}

	current := core.Point{
		Asset:    in.Asset,
		Currency: in.Currency,
		Price:    lastPrice.Value,
		Volume:   lastVolume.Value,
		Time:     lastPrice.Time,
	}
	if in.Current != nil {
		current = *in.Current
	}

	rolling, err := indicator.RollingMean(in.Price, e.opts.Window)
	if err != nil {
		return nil, fmt.Errorf("rolling mean: %w", err)
	}
	band, err := indicator.UpperBand(rolling, e.opts.Multiplier)
	if err != nil {
		return nil, fmt.Errorf("upper band: %w", err)
	}

	accumulation, err := indicator.RegimeBelow(in.Price, rolling)
	if err != nil {
		return nil, fmt.Errorf("accumulation mask: %w", err)
	}
	distribution, err := indicator.RegimeAbove(in.Price, band)
	if err != nil {
		return nil, fmt.Errorf("distribution mask: %w", err)
	}

	baseline, err := signal.TrailingMean(in.Volume, lastVolume.Time, e.opts.VolumeWindowDays)
	if err != nil {
		return nil, fmt.Errorf("volume baseline: %w", err)
	}

	sentiment := signal.Unset()
	if in.Sentiment != nil {
		sentiment = in.Sentiment(current.Time)
	}

	// Both series are non-empty here, so Last cannot fail.
	lastRolling, _ := rolling.Last()
	lastBand, _ := band.Last()

	record, err := signal.BuildRecord(signal.RecordInput{
		Asset:            in.Asset,
		Currency:         in.Currency,
		At:               current.Time,
		Window:           e.opts.Window,
		Multiplier:       e.opts.Multiplier,
		VolumeWindowDays: e.opts.VolumeWindowDays,
		CurrentPrice:     current.Price,
		CurrentVolume:    current.Volume,
		RollingValue:     lastRolling.Value,
		BandValue:        lastBand.Value,
		VolumeBaseline:   baseline,
		Sentiment:        sentiment,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Record:       record,
		Price:        in.Price,
		Rolling:      rolling,
		Band:         band,
		Accumulation: accumulation,
		Distribution: distribution,
	}
	if e.opts.IncludeHalvings {
		first, _ := in.Price.First()
		result.Events = eventsBetween(Halvings, first.Time, lastPrice.Time)
	}

	e.logger.Debug("evaluation complete",
		zap.String("asset", in.Asset),
		zap.Int("observations", in.Price.Len()),
		zap.Float64("price", record.CurrentPrice),
		zap.Float64("rolling_mean", record.RollingMean),
		zap.String("regime", string(record.Regime())),
		zap.Bool("sentiment_set", record.Sentiment.IsSet()),
	)

	return result, nil
}
