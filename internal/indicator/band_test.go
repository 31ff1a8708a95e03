package indicator

import (
	"testing"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpperBand_ScalesRolling(t *testing.T) {
	rolling := daily(t, 100, 150, 250)

	for _, k := range []float64{1, 5, 100} {
		band, err := UpperBand(rolling, k)
		require.NoError(t, err)
		require.Equal(t, rolling.Len(), band.Len())
		for i := 0; i < rolling.Len(); i++ {
			assert.Equal(t, rolling.At(i).Value*k, band.At(i).Value, "k=%v i=%d", k, i)
		}
	}
}

func TestUpperBand_DefaultScenario(t *testing.T) {
	prices := daily(t, 100, 200, 300)
	rolling, err := RollingMean(prices, 2)
	require.NoError(t, err)

	band, err := UpperBand(rolling, DefaultMultiplier)
	require.NoError(t, err)
	assert.Equal(t, []float64{500, 750, 1250}, band.Values())
}

func TestUpperBand_InvalidMultiplier(t *testing.T) {
	rolling := daily(t, 100)
	for _, k := range []float64{0, -5} {
		_, err := UpperBand(rolling, k)
		assert.ErrorIs(t, err, core.ErrInvalidParameter)
	}
}

func TestUpperBand_FractionalMultiplierAccepted(t *testing.T) {
	rolling := daily(t, 100, 100)
	band, err := UpperBand(rolling, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, band.Values())
}

func TestRegimeBelow(t *testing.T) {
	price := daily(t, 90, 110)
	reference := daily(t, 100, 100)

	mask, err := RegimeBelow(price, reference)
	require.NoError(t, err)
	assert.Equal(t, Mask{true, false}, mask)
}

func TestRegimeAbove(t *testing.T) {
	price := daily(t, 90, 110, 100)
	reference := daily(t, 100, 100, 100)

	mask, err := RegimeAbove(price, reference)
	require.NoError(t, err)
	assert.Equal(t, Mask{false, true, false}, mask)
}

func TestRegimeMasks_AreIndependent(t *testing.T) {
	price := daily(t, 50, 300, 700)
	rolling := daily(t, 100, 100, 100)
	band, err := UpperBand(rolling, 5)
	require.NoError(t, err)

	below, err := RegimeBelow(price, rolling)
	require.NoError(t, err)
	above, err := RegimeAbove(price, band)
	require.NoError(t, err)

	// 300 sits between the rolling mean and the band: neither regime.
	assert.Equal(t, Mask{true, false, false}, below)
	assert.Equal(t, Mask{false, false, true}, above)
}

func TestRegimeMasks_BothTrueWithLowMultiplier(t *testing.T) {
	price := daily(t, 80)
	rolling := daily(t, 100)
	band, err := UpperBand(rolling, 0.5)
	require.NoError(t, err)

	below, err := RegimeBelow(price, rolling)
	require.NoError(t, err)
	above, err := RegimeAbove(price, band)
	require.NoError(t, err)

	assert.True(t, below[0])
	assert.True(t, above[0])
}

func TestRegime_Mismatch(t *testing.T) {
	price := daily(t, 1, 2, 3)
	reference := daily(t, 1, 2)

	_, err := RegimeBelow(price, reference)
	assert.ErrorIs(t, err, core.ErrSeriesMismatch)

	_, err = RegimeAbove(price, reference)
	assert.ErrorIs(t, err, core.ErrSeriesMismatch)
}

func TestRegime_AlignedBeforeCompare(t *testing.T) {
	price := daily(t, 1, 2, 3)
	reference := daily(t, 5, 5)

	mask, err := RegimeBelow(price.Align(reference), reference.Align(price))
	require.NoError(t, err)
	assert.Equal(t, Mask{true, true}, mask)
}

func TestMask_Spans(t *testing.T) {
	s := daily(t, 0, 0, 0, 0, 0, 0)
	times := s.Times()
	mask := Mask{true, true, false, false, true, true}

	spans := mask.Spans(times)
	require.Len(t, spans, 2)
	assert.Equal(t, times[0], spans[0].Start)
	assert.Equal(t, times[1], spans[0].End)
	assert.Equal(t, 2, spans[0].Count)
	assert.Equal(t, times[4], spans[1].Start)
	assert.Equal(t, times[5], spans[1].End)
	assert.Equal(t, 4, mask.Count())
}

func TestMask_SpansEmpty(t *testing.T) {
	assert.Empty(t, Mask{false, false}.Spans(daily(t, 1, 2).Times()))
	assert.Empty(t, Mask(nil).Spans(series.TimeSeries{}.Times()))
}
