package indicator

import (
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
)

// DefaultMultiplier scales the rolling mean into the distribution band
const DefaultMultiplier = 5.0

// UpperBand scales every rolling value by multiplier.
// A multiplier at or below 1 puts the band on or under the rolling mean; that is
// accepted as given and left to the caller.
func UpperBand(rolling series.TimeSeries, multiplier float64) (series.TimeSeries, error) {
	if multiplier <= 0 {
		return series.TimeSeries{}, core.Errorf(core.ErrInvalidParameter,
			"multiplier must be positive, got %g", multiplier)
	}
	return rolling.Map(func(v float64) float64 { return v * multiplier }), nil
}

// Mask flags the indices of a series where a regime condition holds
type Mask []bool

// Count returns the number of flagged indices
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Span is a contiguous run of flagged observations
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// Spans groups consecutive flagged indices into time ranges.
// times must be the timestamps of the series the mask was computed on.
func (m Mask) Spans(times []time.Time) []Span {
	n := len(m)
	if len(times) < n {
		n = len(times)
	}

	var spans []Span
	start := -1
	for i := 0; i < n; i++ {
		if m[i] {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, Span{Start: times[start], End: times[i-1], Count: i - start})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: times[start], End: times[n-1], Count: n - start})
	}
	return spans
}

// RegimeBelow flags where price is strictly below reference (accumulation)
func RegimeBelow(price, reference series.TimeSeries) (Mask, error) {
	return compare(price, reference, func(p, r float64) bool { return p < r })
}

// RegimeAbove flags where price is strictly above reference (distribution)
func RegimeAbove(price, reference series.TimeSeries) (Mask, error) {
	return compare(price, reference, func(p, r float64) bool { return p > r })
}

func compare(price, reference series.TimeSeries, cond func(p, r float64) bool) (Mask, error) {
	if !price.SameTimes(reference) {
		return nil, core.Errorf(core.ErrSeriesMismatch,
			"price has %d observations, reference has %d; align the series first",
			price.Len(), reference.Len())
	}

	mask := make(Mask, price.Len())
	for i := range mask {
		mask[i] = cond(price.At(i).Value, reference.At(i).Value)
	}
	return mask, nil
}
