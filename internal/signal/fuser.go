// Package signal fuses the latest market point, the cycle indicators, a trailing
// volume baseline and an external sentiment score into an AnalysisRecord.
package signal

import (
	"fmt"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
)

// TrailingMean averages the observations in [asOf - windowDays, asOf]
func TrailingMean(s series.TimeSeries, asOf time.Time, windowDays int) (float64, error) {
	if windowDays <= 0 {
		return 0, core.Errorf(core.ErrInvalidParameter,
			"window days must be positive, got %d", windowDays)
	}

	start := asOf.Add(-time.Duration(windowDays) * 24 * time.Hour)
	window := s.Slice(start, asOf)
	if window.IsEmpty() {
		return 0, core.Errorf(core.ErrEmptySeries,
			"no observations between %s and %s", start.Format(time.DateOnly), asOf.Format(time.DateOnly))
	}

	var sum float64
	for _, v := range window.Values() {
		sum += v
	}
	return sum / float64(window.Len()), nil
}

// Deviation returns actual-reference and that difference as a percentage of reference.
// A zero reference has no defined percentage and fails with DIVISION_BY_ZERO.
func Deviation(actual, reference float64) (diff, pct float64, err error) {
	if reference == 0 {
		return 0, 0, core.ErrDivisionByZero
	}
	diff = actual - reference
	return diff, diff / reference * 100, nil
}

// RecordInput carries everything BuildRecord fuses
type RecordInput struct {
	Asset            string
	Currency         string
	At               time.Time
	Window           int
	Multiplier       float64
	VolumeWindowDays int

	CurrentPrice   float64
	CurrentVolume  float64
	RollingValue   float64
	BandValue      float64
	VolumeBaseline float64
	Sentiment      Sentiment
}

// BuildRecord computes the deviations of the current point from the rolling
// mean, the band and the volume baseline. It has no side effects.
func BuildRecord(in RecordInput) (AnalysisRecord, error) {
	diffRolling, pctRolling, err := Deviation(in.CurrentPrice, in.RollingValue)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("price vs rolling mean: %w", err)
	}
	diffBand, pctBand, err := Deviation(in.CurrentPrice, in.BandValue)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("price vs band: %w", err)
	}
	diffVolume, pctVolume, err := Deviation(in.CurrentVolume, in.VolumeBaseline)
	if err != nil {
		return AnalysisRecord{}, fmt.Errorf("volume vs baseline: %w", err)
	}

	return AnalysisRecord{
		Asset:            in.Asset,
		Currency:         in.Currency,
		At:               in.At,
		Window:           in.Window,
		Multiplier:       in.Multiplier,
		VolumeWindowDays: in.VolumeWindowDays,
		CurrentPrice:     in.CurrentPrice,
		CurrentVolume:    in.CurrentVolume,
		VolumeMean:       in.VolumeBaseline,
		RollingMean:      in.RollingValue,
		Band:             in.BandValue,
		DiffRolling:      diffRolling,
		DiffRollingPct:   pctRolling,
		DiffBand:         diffBand,
		DiffBandPct:      pctBand,
		DiffVolume:       diffVolume,
		DiffVolumePct:    pctVolume,
		Sentiment:        in.Sentiment,
	}, nil
}
