package signal

import (
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
)

// AnalysisRecord summarizes one evaluation instant
type AnalysisRecord struct {
	Asset            string    `json:"asset,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	At               time.Time `json:"at"`
	Window           int       `json:"window"`
	Multiplier       float64   `json:"multiplier"`
	VolumeWindowDays int       `json:"volume_window_days"`

	CurrentPrice  float64 `json:"current_price"`
	CurrentVolume float64 `json:"current_volume"`
	VolumeMean    float64 `json:"volume_mean"`
	RollingMean   float64 `json:"rolling_mean"`
	Band          float64 `json:"band"`

	DiffRolling    float64 `json:"diff_rolling"`
	DiffRollingPct float64 `json:"diff_rolling_percent"`
	DiffBand       float64 `json:"diff_band"`
	DiffBandPct    float64 `json:"diff_band_percent"`
	DiffVolume     float64 `json:"diff_volume"`
	DiffVolumePct  float64 `json:"diff_volume_percent"`

	Sentiment Sentiment `json:"sentiment_score"`
}

// Field is one key/value pair of a flattened record
type Field struct {
	Key   string
	Value any
}

// Fields flattens the record in a stable order. An unset sentiment has a nil value.
func (r AnalysisRecord) Fields() []Field {
	var sentiment any
	if v, ok := r.Sentiment.Value(); ok {
		sentiment = v
	}

	return []Field{
		{"current_price", r.CurrentPrice},
		{"current_volume", r.CurrentVolume},
		{"volume_mean", r.VolumeMean},
		{"rolling_mean", r.RollingMean},
		{"band", r.Band},
		{"diff_rolling", r.DiffRolling},
		{"diff_rolling_percent", r.DiffRollingPct},
		{"diff_band", r.DiffBand},
		{"diff_band_percent", r.DiffBandPct},
		{"diff_volume", r.DiffVolume},
		{"diff_volume_percent", r.DiffVolumePct},
		{"sentiment_score", sentiment},
	}
}

// Map returns Fields as a map
func (r AnalysisRecord) Map() map[string]any {
	fields := r.Fields()
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m
}

// Regime classifies the current price. Accumulation takes precedence when a
// multiplier under 1 leaves the price both below the rolling mean and above the band.
func (r AnalysisRecord) Regime() core.Regime {
	switch {
	case r.CurrentPrice < r.RollingMean:
		return core.RegimeAccumulation
	case r.CurrentPrice > r.Band:
		return core.RegimeDistribution
	default:
		return core.RegimeNeutral
	}
}
