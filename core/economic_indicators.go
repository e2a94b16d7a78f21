package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"fx.service/api/yahoo"
	sm "fx.service/models"
)

var indonesianMonths = map[string]time.Month{
	"januari":   time.January,
	"februari":  time.February,
	"maret":     time.March,
	"april":     time.April,
	"mei":       time.May,
	"juni":      time.June,
	"juli":      time.July,
	"agustus":   time.August,
	"september": time.September,
	"oktober":   time.October,
	"november":  time.November,
	"desember":  time.December,
}

type observation struct {
	period time.Time
	value  float64
}

// LoadEconomicIndicators reads the local indicator files and the two equity
// indices concurrently. A source that fails is logged and reported as null
// with a neutral trend.
func (sc *ServiceContext) LoadEconomicIndicators(ctx context.Context) sm.EconomicIndicators {
	var res sm.EconomicIndicators
	paths := sc.Config.Economic

	loaders := []struct {
		name string
		dst  *sm.Indicator
		load func() (sm.Indicator, error)
	}{
		{"inflation_us", &res.InflationUS, func() (sm.Indicator, error) { return LoadInflationUS(paths.InflationUSPath) }},
		{"inflation_id", &res.InflationID, func() (sm.Indicator, error) { return LoadInflationID(paths.InflationIDPath) }},
		{"bi_rate", &res.BIRate, func() (sm.Indicator, error) { return LoadBIRate(paths.BIRatePath) }},
		{"fed_rate", &res.FedRate, func() (sm.Indicator, error) { return LoadFedRate(paths.FedRatePath) }},
		{"jkse", &res.JKSE, func() (sm.Indicator, error) { return sc.loadIndex(ctx, yahoo.SymbolJKSE) }},
		{"sp500", &res.SP500, func() (sm.Indicator, error) { return sc.loadIndex(ctx, yahoo.SymbolSP500) }},
	}

	var g errgroup.Group
	for _, l := range loaders {
		g.Go(func() error {
			ind, err := l.load()
			if err != nil {
				sc.Log.WithError(err).WithField("indicator", l.name).Warn("error loading economic indicator")
				ind = sm.Indicator{Trend: sm.TrendNeutral}
			}
			*l.dst = ind
			return nil
		})
	}
	_ = g.Wait()

	return res
}

func (sc *ServiceContext) loadIndex(ctx context.Context, symbol string) (sm.Indicator, error) {
	current, previous, err := sc.YahooClient.GetLatestClose(ctx, symbol)
	if err != nil {
		return sm.Indicator{}, err
	}
	prev := math.NaN()
	if previous.Valid {
		prev = previous.Float64
	}
	return sm.Indicator{
		Value: null.FloatFrom(current),
		Trend: trendOf(current, prev),
	}, nil
}

// LoadInflationUS reads a Year,Month,Inflation Rate file. Month may be a
// number or an English month name.
func LoadInflationUS(path string) (sm.Indicator, error) {
	header, records, err := readCSV(path, "Year", "Month", "Inflation Rate")
	if err != nil {
		return sm.Indicator{}, err
	}

	obs := make([]observation, 0, len(records))
	for _, rec := range records {
		year, err := strconv.Atoi(strings.TrimSpace(rec[header["Year"]]))
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid year %q in %s: %w", rec[header["Year"]], path, err)
		}
		month, err := parseMonth(rec[header["Month"]])
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid month in %s: %w", path, err)
		}
		value, err := parsePercent(rec[header["Inflation Rate"]])
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid inflation rate in %s: %w", path, err)
		}
		obs = append(obs, observation{period: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), value: value})
	}

	return latestIndicator(obs)
}

// LoadInflationID reads a Periode,Data Inflasi file with periods such as
// "Januari 2024" and values such as "2.57 %".
func LoadInflationID(path string) (sm.Indicator, error) {
	header, records, err := readCSV(path, "Periode", "Data Inflasi")
	if err != nil {
		return sm.Indicator{}, err
	}

	obs := make([]observation, 0, len(records))
	for _, rec := range records {
		period, err := parseIndonesianPeriod(rec[header["Periode"]], time.Now())
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid period in %s: %w", path, err)
		}
		value, err := parsePercent(rec[header["Data Inflasi"]])
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid inflation in %s: %w", path, err)
		}
		obs = append(obs, observation{period: period, value: value})
	}

	return latestIndicator(obs)
}

// LoadBIRate reads a Tanggal,BI-7Day-RR file. A leading day number, as in
// "17 Januari 2024", is dropped.
func LoadBIRate(path string) (sm.Indicator, error) {
	header, records, err := readCSV(path, "Tanggal", "BI-7Day-RR")
	if err != nil {
		return sm.Indicator{}, err
	}

	obs := make([]observation, 0, len(records))
	for _, rec := range records {
		fields := strings.Fields(rec[header["Tanggal"]])
		if len(fields) > 1 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				fields = fields[1:]
			}
		}
		period, err := parseIndonesianPeriod(strings.Join(fields, " "), time.Now())
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid date in %s: %w", path, err)
		}
		value, err := parsePercent(rec[header["BI-7Day-RR"]])
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid rate in %s: %w", path, err)
		}
		obs = append(obs, observation{period: period, value: value})
	}

	return latestIndicator(obs)
}

// LoadFedRate reads the DATE,DFF export of the effective federal funds rate.
func LoadFedRate(path string) (sm.Indicator, error) {
	header, records, err := readCSV(path, "DATE", "DFF")
	if err != nil {
		return sm.Indicator{}, err
	}

	obs := make([]observation, 0, len(records))
	for _, rec := range records {
		date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[header["DATE"]]))
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid date in %s: %w", path, err)
		}
		value, err := parsePercent(rec[header["DFF"]])
		if err != nil {
			return sm.Indicator{}, fmt.Errorf("invalid rate in %s: %w", path, err)
		}
		obs = append(obs, observation{period: date, value: value})
	}

	return latestIndicator(obs)
}

// latestIndicator compares the last two values by period, leaving obs in
// its original order. A NaN latest value is reported as null.
func latestIndicator(obs []observation) (sm.Indicator, error) {
	if len(obs) == 0 {
		return sm.Indicator{}, errors.New("no observations")
	}

	obs = slices.SortedStableFunc(slices.Values(obs), func(a, b observation) int { return a.period.Compare(b.period) })

	current := obs[len(obs)-1].value
	previous := math.NaN()
	if len(obs) > 1 {
		previous = obs[len(obs)-2].value
	}

	res := sm.Indicator{Trend: trendOf(current, previous)}
	if !math.IsNaN(current) {
		res.Value = null.FloatFrom(current)
	}
	return res, nil
}

// trendOf compares a value with its predecessor. NaN counts as missing.
func trendOf(current, previous float64) string {
	switch {
	case math.IsNaN(current) || math.IsNaN(previous):
		return sm.TrendNeutral
	case current > previous:
		return sm.TrendUp
	case current < previous:
		return sm.TrendDown
	default:
		return sm.TrendNeutral
	}
}

// readCSV returns the records of path and the position of each required
// column. Unnamed index columns and extra columns are ignored.
func readCSV(path string, required ...string) (map[string]int, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, nil, fmt.Errorf("%s has no data rows", path)
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		header[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	width := 0
	for _, col := range required {
		i, ok := header[col]
		if !ok {
			return nil, nil, fmt.Errorf("%s is missing column %q", path, col)
		}
		width = max(width, i+1)
	}

	records := make([][]string, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		if len(rec) < width {
			continue
		}
		records = append(records, rec)
	}
	return header, records, nil
}

func parsePercent(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || strings.EqualFold(s, "nan") || s == "." {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

func parseMonth(s string) (time.Month, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return time.Month(n), nil
	}
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Month(), nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

// parseIndonesianPeriod parses "Januari 2024". A bare month name is taken in
// the year of now.
func parseIndonesianPeriod(s string, now time.Time) (time.Time, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return time.Time{}, fmt.Errorf("unexpected period %q", s)
	}

	month, ok := indonesianMonths[strings.ToLower(fields[0])]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q", fields[0])
	}

	year := now.Year()
	if len(fields) == 2 {
		y, err := strconv.Atoi(fields[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid year in %q: %w", s, err)
		}
		year = y
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), nil
}
