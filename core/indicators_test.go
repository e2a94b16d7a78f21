package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ex "fx.service/data/extensions"
	"fx.service/forecast"
)

func series(values ...float64) []float64 { return values }

func TestSma_AlignsWithInput(t *testing.T) {
	res := sma(series(1, 2, 3, 4, 5, 6), 3)
	require.Len(t, res, 6)
	assert.True(t, math.IsNaN(res[0]))
	assert.True(t, math.IsNaN(res[1]))
	assert.InDelta(t, 2, res[2], 1e-9)
	assert.InDelta(t, 5, res[5], 1e-9)
}

func TestMomentumAndRateOfChange(t *testing.T) {
	values := series(100, 110, 121, 133.1, 146.41)

	mom := momentum(values, 4)
	assert.True(t, math.IsNaN(mom[3]))
	assert.InDelta(t, 46.41, mom[4], 1e-9)

	roc := rateOfChange(values, 2)
	assert.True(t, math.IsNaN(roc[1]))
	assert.InDelta(t, 0.21, roc[2], 1e-9)
	assert.InDelta(t, 0.21, roc[4], 1e-9)
}

func TestRsi_BalancedMovesSitAtFifty(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i%2)
	}

	res := rsi(values, 10)
	assert.InDelta(t, 50, res[len(res)-1], 1e-9)

	// no losses at all leaves the ratio undefined
	rising := rsi(series(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12), 10)
	assert.True(t, math.IsNaN(rising[11]))
}

func TestBollingerBands_ConstantSeriesCollapses(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 15500
	}

	upper, lower := bollingerBands(values, 20, 2)
	assert.True(t, math.IsNaN(upper[18]))
	assert.InDelta(t, 15500, upper[24], 1e-6)
	assert.InDelta(t, 15500, lower[24], 1e-6)
}

func TestCci_FlatWindowIsUndefined(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 10
	}
	assert.True(t, math.IsNaN(cci(flat, 20)[19]))

	ramp := make([]float64, 20)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	assert.Greater(t, cci(ramp, 20)[19], 100.0)
}

func TestMacd_RisingSeriesIsPositive(t *testing.T) {
	values := make([]float64, 80)
	for i := range values {
		values[i] = 15000 + 10*float64(i)
	}

	line, signal := macd(values)
	require.Len(t, line, 80)
	require.Len(t, signal, 80)
	assert.True(t, math.IsNaN(line[0]))
	assert.Greater(t, line[79], 0.0)
	assert.Greater(t, signal[79], 0.0)
}

func TestFillGaps(t *testing.T) {
	values := series(math.NaN(), math.NaN(), 3, math.NaN(), 5)
	fillGaps(values)
	assert.Equal(t, series(3, 3, 3, 3, 5), values)

	empty := series(math.NaN(), math.NaN())
	fillGaps(empty)
	assert.True(t, math.IsNaN(empty[1]))
}

func TestTypicalPrice_FallsBackToClose(t *testing.T) {
	assert.Equal(t, 15.0, typicalPrice(Bar{High: 20, Low: 10, Close: 15}))
	assert.Equal(t, 15.0, typicalPrice(Bar{High: math.NaN(), Low: 10, Close: 15}))
}

func TestApplyTechnicalIndicators_ProducesFiniteModelRows(t *testing.T) {
	days := businessDays(fixtureStart, fixtureDays)
	closes := fixtureCloses(fixtureDays)
	bars := make([]Bar, fixtureDays)
	for i := range bars {
		bars[i] = Bar{Date: days[i], Open: closes[i] - 5, High: closes[i] + 20, Low: closes[i] - 20, Close: closes[i]}
	}

	rows := ApplyTechnicalIndicators(bars)
	require.Len(t, rows, fixtureDays)
	assert.Equal(t, days[0], rows[0].Date)

	for _, col := range append([]string{"Open", "High", "Low"}, forecast.TechnicalColumns...) {
		values := make([]float64, len(rows))
		for i, row := range rows {
			v, ok := row.Values[col]
			require.True(t, ok, "missing %s on %s", col, ex.FmtShort(row.Date))
			values[i] = v
		}
		ex.AssertFinite(t, col, values...)
	}

	last := rows[len(rows)-1].Values
	assert.InDelta(t, closes[fixtureDays-1]-closes[fixtureDays-5], last["Momentum"], 1e-9)
	assert.Less(t, last["Lower_Band"], last["Upper_Band"])

	assert.Nil(t, ApplyTechnicalIndicators(nil))
}
