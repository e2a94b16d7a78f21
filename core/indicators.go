package core

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"gonum.org/v1/gonum/stat"

	"fx.service/forecast"
)

const (
	maShortPeriod   = 50
	maLongPeriod    = 200
	macdShortPeriod = 12
	macdLongPeriod  = 26
	macdSignal      = 9
	rocPeriod       = 2
	momentumPeriod  = 4
	rsiPeriod       = 10
	bollingerPeriod = 20
	bollingerWidth  = 2
	cciPeriod       = 20
	cciConstant     = 0.015
)

// ApplyTechnicalIndicators turns the cleaned bars into model rows. Every row
// carries Open, High, Low and every column of forecast.TechnicalColumns.
// Leading values an indicator cannot define yet are forward then back filled.
func ApplyTechnicalIndicators(bars []Bar) []forecast.Row {
	n := len(bars)
	if n == 0 {
		return nil
	}

	closes := make([]float64, n)
	typical := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		typical[i] = typicalPrice(b)
	}

	macdLine, macdSignalLine := macd(closes)
	upper, lower := bollingerBands(closes, bollingerPeriod, bollingerWidth)

	columns := map[string][]float64{
		"MA_50":       sma(closes, maShortPeriod),
		"MA_200":      sma(closes, maLongPeriod),
		"MACD_line":   macdLine,
		"MACD_signal": macdSignalLine,
		"ROC":         rateOfChange(closes, rocPeriod),
		"Momentum":    momentum(closes, momentumPeriod),
		"RSI":         rsi(closes, rsiPeriod),
		"Upper_Band":  upper,
		"Lower_Band":  lower,
		"CCI":         cci(typical, cciPeriod),
	}
	for _, values := range columns {
		fillGaps(values)
	}

	rows := make([]forecast.Row, n)
	for i, b := range bars {
		values := make(map[string]float64, len(columns)+4)
		values["Open"] = b.Open
		values["High"] = b.High
		values["Low"] = b.Low
		values["Close"] = b.Close
		for name, col := range columns {
			values[name] = col[i]
		}
		rows[i] = forecast.Row{Date: b.Date, Values: values}
	}
	return rows
}

func sma(values []float64, period int) []float64 {
	indicator := trend.NewSmaWithPeriod[float64](period)
	return alignRight(helper.ChanToSlice(indicator.Compute(helper.SliceToChan(values))), len(values))
}

// macd returns the MACD line and its signal line, both aligned with values.
func macd(values []float64) ([]float64, []float64) {
	indicator := trend.NewMacdWithPeriod[float64](macdShortPeriod, macdLongPeriod, macdSignal)
	lines, signals := indicator.Compute(helper.SliceToChan(values))

	// both outputs share one upstream, so they are drained together
	done := make(chan []float64)
	go func() { done <- helper.ChanToSlice(signals) }()
	line := helper.ChanToSlice(lines)
	signal := <-done

	return alignRight(line, len(values)), alignRight(signal, len(values))
}

func rateOfChange(values []float64, period int) []float64 {
	res := nanSlice(len(values))
	for i := period; i < len(values); i++ {
		res[i] = values[i]/values[i-period] - 1
	}
	return res
}

func momentum(values []float64, period int) []float64 {
	res := nanSlice(len(values))
	for i := period; i < len(values); i++ {
		res[i] = values[i] - values[i-period]
	}
	return res
}

// rsi uses simple moving averages of gains and losses.
func rsi(values []float64, period int) []float64 {
	n := len(values)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := sma(gains, period)
	avgLoss := sma(losses, period)

	res := nanSlice(n)
	for i := range res {
		rs := avgGain[i] / avgLoss[i]
		if math.IsNaN(rs) || math.IsInf(rs, 0) {
			continue
		}
		res[i] = 100 - 100/(1+rs)
	}
	return res
}

// bollingerBands uses the sample standard deviation of each window.
func bollingerBands(values []float64, period int, width float64) ([]float64, []float64) {
	mean := sma(values, period)
	upper := nanSlice(len(values))
	lower := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		sd := stat.StdDev(values[i-period+1:i+1], nil)
		upper[i] = mean[i] + width*sd
		lower[i] = mean[i] - width*sd
	}
	return upper, lower
}

func cci(typical []float64, period int) []float64 {
	res := nanSlice(len(typical))
	for i := period - 1; i < len(typical); i++ {
		window := typical[i-period+1 : i+1]
		mean := stat.Mean(window, nil)

		mad := 0.0
		for _, v := range window {
			mad += math.Abs(v - mean)
		}
		mad /= float64(period)
		if mad == 0 {
			continue
		}
		res[i] = (typical[i] - mean) / (cciConstant * mad)
	}
	return res
}

func typicalPrice(b Bar) float64 {
	if math.IsNaN(b.High) || math.IsNaN(b.Low) {
		return b.Close
	}
	return (b.High + b.Low + b.Close) / 3
}

// alignRight places a shorter indicator output at the end of a series of
// length n, padding the front with NaN.
func alignRight(values []float64, n int) []float64 {
	res := nanSlice(n)
	if len(values) > n {
		values = values[len(values)-n:]
	}
	copy(res[n-len(values):], values)
	return res
}

// fillGaps forward fills NaNs, then back fills whatever leads the series.
func fillGaps(values []float64) {
	firstValid := -1
	for i, v := range values {
		if math.IsNaN(v) {
			if i > 0 {
				values[i] = values[i-1]
			}
			continue
		}
		if firstValid < 0 {
			firstValid = i
		}
	}
	if firstValid <= 0 {
		return
	}
	for i := 0; i < firstValid; i++ {
		values[i] = values[firstValid]
	}
}

func nanSlice(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = math.NaN()
	}
	return res
}
