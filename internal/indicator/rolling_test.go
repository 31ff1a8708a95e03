package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func daily(t *testing.T, values ...float64) series.TimeSeries {
	t.Helper()
	times := make([]time.Time, len(values))
	for i := range values {
		times[i] = day0.AddDate(0, 0, i)
	}
	s, err := series.FromValues(times, values)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

func TestRollingMean_Calculate(t *testing.T) {
	prices := daily(t, 100, 200, 300)

	rolling, err := RollingMean(prices, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// window 2 over [100,200,300]:
	// [0] = 100 (warm-up, one sample)
	// [1] = (100+200)/2 = 150
	// [2] = (200+300)/2 = 250
	expected := []float64{100, 150, 250}

	got := rolling.Values()
	if len(got) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(got))
	}
	for i, v := range expected {
		if got[i] != v {
			t.Errorf("rolling[%d] = %f, want %f", i, got[i], v)
		}
	}
	if !rolling.SameTimes(prices) {
		t.Error("rolling mean must keep the source timestamps")
	}
}

func TestRollingMean_WindowOneIsIdentity(t *testing.T) {
	prices := daily(t, 3.5, 0.1, 0.2, 0.3, 0.7, 12.25)

	rolling, err := RollingMean(prices, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := prices.Values()
	for i, v := range rolling.Values() {
		if v != want[i] {
			t.Errorf("rolling[%d] = %f, want %f", i, v, want[i])
		}
	}
}

func TestRollingMean_LargeValueLeavesWindow(t *testing.T) {
	prices := daily(t, 1e17, 1e17, 3, 3, 3, 3)

	rolling, err := RollingMean(prices, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := rolling.Values()
	for i := 3; i < len(got); i++ {
		if !almostEqual(got[i], 3, 1e-9) {
			t.Errorf("rolling[%d] = %v, want 3", i, got[i])
		}
	}
}

func TestRollingMean_ExpandingDuringWarmUp(t *testing.T) {
	values := []float64{10, 20, 60, 30, 5}
	prices := daily(t, values...)

	rolling, err := RollingMean(prices, 730)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for i, v := range rolling.Values() {
		sum += values[i]
		want := sum / float64(i+1)
		if !almostEqual(v, want, 1e-9) {
			t.Errorf("rolling[%d] = %f, want expanding mean %f", i, v, want)
		}
	}
}

func TestRollingMean_SlidesAfterWarmUp(t *testing.T) {
	prices := daily(t, 10, 11, 12, 13, 14, 15)

	rolling, err := RollingMean(prices, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []float64{10, 10.5, 11, 12, 13, 14}
	for i, v := range rolling.Values() {
		if !almostEqual(v, expected[i], 1e-9) {
			t.Errorf("rolling[%d] = %f, want %f", i, v, expected[i])
		}
	}
}

func TestRollingMean_InvalidWindow(t *testing.T) {
	prices := daily(t, 1, 2)

	for _, w := range []int{0, -1} {
		_, err := RollingMean(prices, w)
		if !errors.Is(err, core.ErrInvalidParameter) {
			t.Errorf("window %d: expected INVALID_PARAMETER, got %v", w, err)
		}
	}
}

func TestRollingMean_EmptySeries(t *testing.T) {
	rolling, err := RollingMean(series.TimeSeries{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rolling.IsEmpty() {
		t.Errorf("expected empty series, got %d values", rolling.Len())
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}
