// Package indicator computes the cycle indicators over a price series:
// the trailing rolling mean, the multiplier band and the regime masks.
package indicator

import (
	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
)

// RollingMean calculates a trailing moving average with a minimum of one period.
// Index i averages s[max(0, i-window+1) .. i], so the output has the same length
// as the input and the warm-up values average fewer than window samples.
func RollingMean(s series.TimeSeries, window int) (series.TimeSeries, error) {
	if window <= 0 {
		return series.TimeSeries{}, core.Errorf(core.ErrInvalidParameter,
			"window size must be positive, got %d", window)
	}

	values := s.Values()
	means := make([]float64, len(values))

	// Each window is summed on its own; a running sum drifts as values leave it.
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, v := range values[start : i+1] {
			sum += v
		}
		means[i] = sum / float64(i+1-start)
	}

	return series.FromValues(s.Times(), means)
}
