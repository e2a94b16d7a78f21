package core

import (
	"math"
	"time"

	"github.com/guregu/null/v6"
	"github.com/sirupsen/logrus"

	m "fx.service/data/models"
)

// closes below this are bad ticks in the USD/IDR feed
const minPlausibleRate = 6000

var jakarta = loadLocation("Asia/Jakarta")

// Bar is one business day of the cleaned series. Open, High and Low stay NaN
// when the feed never reported them.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// CleanHistory reindexes the bars onto business days in loc, treats missing
// and implausible closes as gaps, fills interior gaps by time-weighted linear
// interpolation and carries the last value over trailing gaps. Leading days
// without a close are dropped.
func CleanHistory(data []*m.TimeSeriesData, loc *time.Location) []Bar {
	if len(data) == 0 {
		return nil
	}

	byDate := make(map[time.Time]*m.TimeSeriesData, len(data))
	var first, last time.Time
	for i, d := range data {
		day := dateOf(d.Timestamp, loc)
		byDate[day] = d
		if i == 0 || day.Before(first) {
			first = day
		}
		if i == 0 || day.After(last) {
			last = day
		}
	}

	var bars []Bar
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}

		bar := Bar{Date: day, Open: math.NaN(), High: math.NaN(), Low: math.NaN(), Close: math.NaN()}
		if d, ok := byDate[day]; ok {
			bar.Open = valueOf(d.Open)
			bar.High = valueOf(d.High)
			bar.Low = valueOf(d.Low)
			if d.Close.Valid && d.Close.Float64 >= minPlausibleRate {
				bar.Close = d.Close.Float64
			}
		}
		bars = append(bars, bar)
	}

	days := make([]float64, len(bars))
	for i, b := range bars {
		days[i] = b.Date.Sub(first).Hours() / 24
	}

	columns := []func(*Bar) *float64{
		func(b *Bar) *float64 { return &b.Open },
		func(b *Bar) *float64 { return &b.High },
		func(b *Bar) *float64 { return &b.Low },
		func(b *Bar) *float64 { return &b.Close },
	}
	for _, field := range columns {
		values := make([]float64, len(bars))
		for i := range bars {
			values[i] = *field(&bars[i])
		}
		interpolateTime(days, values)
		for i := range bars {
			*field(&bars[i]) = values[i]
		}
	}

	start := 0
	for start < len(bars) && math.IsNaN(bars[start].Close) {
		start++
	}
	return bars[start:]
}

// interpolateTime fills NaNs in values in place. x holds the positions of the
// values and must be increasing.
func interpolateTime(x, values []float64) {
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			slope := (v - values[prev]) / (x[i] - x[prev])
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + slope*(x[j]-x[prev])
			}
		}
		prev = i
	}

	if prev >= 0 {
		for j := prev + 1; j < len(values); j++ {
			values[j] = values[prev]
		}
	}
}

// USDIDRSummary is what the dashboard headlines about the series.
type USDIDRSummary struct {
	Current  float64
	Previous float64
	MonthAgo float64
	Trend    string
	Valid    bool
}

// SummarizeHistory reads the latest close, its trend against the previous
// business day and the close at the start of the last 30 business days.
func SummarizeHistory(bars []Bar) USDIDRSummary {
	n := len(bars)
	if n == 0 {
		return USDIDRSummary{Trend: trendOf(math.NaN(), math.NaN())}
	}

	res := USDIDRSummary{
		Current:  bars[n-1].Close,
		Previous: math.NaN(),
		MonthAgo: bars[max(0, n-30)].Close,
		Valid:    true,
	}
	if n > 1 {
		res.Previous = bars[n-2].Close
	}
	res.Trend = trendOf(res.Current, res.Previous)
	return res
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.In(loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, loc)
}

func valueOf(f null.Float) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.WithError(err).Warnf("time zone %s unavailable, using a fixed UTC+7 offset", name)
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}
