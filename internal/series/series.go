// Package series holds ordered, timestamp-indexed observation sequences.
//
// A TimeSeries is a value: every transformation returns a new series and
// accessors hand out copies, so a series can be shared across goroutines.
package series

import (
	"sort"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
)

// TimeSeries is a strictly time-ordered sequence of observations
type TimeSeries struct {
	obs []core.Observation
}

// New builds a series from observations already ordered by time.
// Out-of-order and duplicate timestamps are rejected, never deduplicated.
func New(obs []core.Observation) (TimeSeries, error) {
	for i := 1; i < len(obs); i++ {
		if !obs[i].Time.After(obs[i-1].Time) {
			return TimeSeries{}, core.Errorf(core.ErrMalformedSeries,
				"observation %d at %s does not follow %s",
				i, obs[i].Time.Format(time.RFC3339), obs[i-1].Time.Format(time.RFC3339))
		}
	}

	cp := make([]core.Observation, len(obs))
	copy(cp, obs)
	return TimeSeries{obs: cp}, nil
}

// FromValues zips parallel timestamp and value slices into a series
func FromValues(times []time.Time, values []float64) (TimeSeries, error) {
	if len(times) != len(values) {
		return TimeSeries{}, core.Errorf(core.ErrSeriesMismatch,
			"%d timestamps for %d values", len(times), len(values))
	}

	obs := make([]core.Observation, len(times))
	for i := range times {
		obs[i] = core.Observation{Time: times[i], Value: values[i]}
	}
	return New(obs)
}

// Len returns the number of observations
func (s TimeSeries) Len() int {
	return len(s.obs)
}

// IsEmpty reports whether the series has no observations
func (s TimeSeries) IsEmpty() bool {
	return len(s.obs) == 0
}

// At returns the i-th observation. It panics on an out of range index like a slice would.
func (s TimeSeries) At(i int) core.Observation {
	return s.obs[i]
}

// Observations returns a copy of the underlying observations
func (s TimeSeries) Observations() []core.Observation {
	cp := make([]core.Observation, len(s.obs))
	copy(cp, s.obs)
	return cp
}

// Times returns the timestamps in order
func (s TimeSeries) Times() []time.Time {
	times := make([]time.Time, len(s.obs))
	for i, o := range s.obs {
		times[i] = o.Time
	}
	return times
}

// Values returns the values in order
func (s TimeSeries) Values() []float64 {
	values := make([]float64, len(s.obs))
	for i, o := range s.obs {
		values[i] = o.Value
	}
	return values
}

// First returns the oldest observation
func (s TimeSeries) First() (core.Observation, error) {
	if len(s.obs) == 0 {
		return core.Observation{}, core.ErrEmptySeries
	}
	return s.obs[0], nil
}

// Last returns the most recent observation
func (s TimeSeries) Last() (core.Observation, error) {
	if len(s.obs) == 0 {
		return core.Observation{}, core.ErrEmptySeries
	}
	return s.obs[len(s.obs)-1], nil
}

// Slice returns the observations with start <= t <= end.
// An empty range yields an empty series, not an error.
func (s TimeSeries) Slice(start, end time.Time) TimeSeries {
	lo := s.search(start)
	hi := lo
	for hi < len(s.obs) && !s.obs[hi].Time.After(end) {
		hi++
	}
	if lo >= hi {
		return TimeSeries{}
	}

	cp := make([]core.Observation, hi-lo)
	copy(cp, s.obs[lo:hi])
	return TimeSeries{obs: cp}
}

// Align returns the subsequence of s whose timestamps also appear in other
func (s TimeSeries) Align(other TimeSeries) TimeSeries {
	keys := make(map[int64]struct{}, len(other.obs))
	for _, o := range other.obs {
		keys[o.Time.UnixNano()] = struct{}{}
	}

	out := make([]core.Observation, 0, len(s.obs))
	for _, o := range s.obs {
		if _, ok := keys[o.Time.UnixNano()]; ok {
			out = append(out, o)
		}
	}
	return TimeSeries{obs: out}
}

// SameTimes reports whether both series carry exactly the same timestamps
func (s TimeSeries) SameTimes(other TimeSeries) bool {
	if len(s.obs) != len(other.obs) {
		return false
	}
	for i := range s.obs {
		if !s.obs[i].Time.Equal(other.obs[i].Time) {
			return false
		}
	}
	return true
}

// Lookup returns the last value observed on the same UTC calendar day as at
func (s TimeSeries) Lookup(at time.Time) (float64, bool) {
	day := truncateDay(at)
	next := day.AddDate(0, 0, 1)

	i := s.search(next) - 1
	if i < 0 || s.obs[i].Time.Before(day) {
		return 0, false
	}
	return s.obs[i].Value, true
}

// Map returns a new series with fn applied to every value
func (s TimeSeries) Map(fn func(float64) float64) TimeSeries {
	out := make([]core.Observation, len(s.obs))
	for i, o := range s.obs {
		out[i] = core.Observation{Time: o.Time, Value: fn(o.Value)}
	}
	return TimeSeries{obs: out}
}

// Daily keeps the last observation of every UTC calendar day, stamped at the
// observation's own time. Hourly provider data collapses to one point per day.
func (s TimeSeries) Daily() TimeSeries {
	out := make([]core.Observation, 0, len(s.obs))
	for i, o := range s.obs {
		if i+1 < len(s.obs) && truncateDay(s.obs[i+1].Time).Equal(truncateDay(o.Time)) {
			continue
		}
		out = append(out, o)
	}
	return TimeSeries{obs: out}
}

// search returns the index of the first observation at or after t
func (s TimeSeries) search(t time.Time) int {
	return sort.Search(len(s.obs), func(i int) bool {
		return !s.obs[i].Time.Before(t)
	})
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
