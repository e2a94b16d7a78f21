package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/guregu/null/v6"
	"github.com/sirupsen/logrus"

	c "fx.service/api"
	m "fx.service/data/models"
)

// public
const (
	HostDefault = "query1.finance.yahoo.com"

	SymbolUSDIDR = "USDIDR=X"
	SymbolJKSE   = "^JKSE"
	SymbolSP500  = "^GSPC"
)

// private
const (
	defaultTimeout = time.Second * 30
	chartPath      = "/v8/finance/chart/"

	interval = "interval"
	rng      = "range"
)

type YahooClient struct {
	*c.Client
}

func GetClient(opts ...c.Option) YahooClient {
	return GetClientForHost(HostDefault, opts...)
}

func GetClientForHost(host string, opts ...c.Option) YahooClient {
	return YahooClient{
		c.ClientFactory(host, "", defaultTimeout, opts...),
	}
}

// chartResponse mirrors the parts of the chart API payload we read. Prices
// are null on days the market did not trade.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string `json:"symbol"`
				Currency             string `json:"currency"`
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
				RegularMarketTime    int64  `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []null.Float `json:"open"`
					High   []null.Float `json:"high"`
					Low    []null.Float `json:"low"`
					Close  []null.Float `json:"close"`
					Volume []null.Float `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetChart returns the bars of symbol in chronological order, timestamps in
// the exchange's time zone.
func (yc *YahooClient) GetChart(ctx context.Context, symbol string, ti TimeInterval, tr TimeRange) (*m.TimeSeriesResult, error) {
	if yc == nil || yc.Client == nil {
		panic("yahoo client has not been set.")
	}

	endpoint := yc.buildRequestPath(symbol, map[string]string{
		interval: ti.Interval(),
		rng:      tr.Range(),
	})

	response, err := yc.Client.Connection.Request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error requesting chart for %s: %w", symbol, err)
	}
	defer response.Body.Close()

	return parseChart(response.Body)
}

// GetDailyHistory is GetChart for daily bars.
func (yc *YahooClient) GetDailyHistory(ctx context.Context, symbol string, tr TimeRange) (*m.TimeSeriesResult, error) {
	return yc.GetChart(ctx, symbol, TimeIntervalDaily, tr)
}

// GetLatestClose returns the two most recent non-null daily closes. previous
// is invalid when the symbol has a single close in the last month.
func (yc *YahooClient) GetLatestClose(ctx context.Context, symbol string) (current float64, previous null.Float, err error) {
	res, err := yc.GetDailyHistory(ctx, symbol, TimeRangeOneMonth)
	if err != nil {
		return 0, null.Float{}, err
	}

	closes := make([]float64, 0, len(res.TimeSeries))
	for _, bar := range res.TimeSeries {
		if bar.Close.Valid {
			closes = append(closes, bar.Close.Float64)
		}
	}

	switch len(closes) {
	case 0:
		return 0, null.Float{}, fmt.Errorf("no closes returned for %s", symbol)
	case 1:
		return closes[0], null.Float{}, nil
	}

	return closes[len(closes)-1], null.FloatFrom(closes[len(closes)-2]), nil
}

func (yc *YahooClient) buildRequestPath(symbol string, params map[string]string) *url.URL {
	endpoint := &url.URL{}
	endpoint.Path = chartPath + symbol

	query := endpoint.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseChart(reader io.Reader) (*m.TimeSeriesResult, error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo returned no chart result")
	}

	result := chart.Chart.Result[0]
	location := getTimeZone(result.Meta.ExchangeTimezoneName)

	metadata := &m.TimeSeriesMetadata{
		Symbol:        result.Meta.Symbol,
		LastRefreshed: time.Unix(result.Meta.RegularMarketTime, 0).In(location),
		Currency:      result.Meta.Currency,
		TimeZone:      location.String(),
	}

	if len(result.Indicators.Quote) == 0 {
		return &m.TimeSeriesResult{Metadata: metadata}, nil
	}
	quote := result.Indicators.Quote[0]

	timeSeries := make([]*m.TimeSeriesData, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		timeSeries = append(timeSeries, &m.TimeSeriesData{
			Timestamp: time.Unix(ts, 0).In(location),
			Open:      at(quote.Open, i),
			High:      at(quote.High, i),
			Low:       at(quote.Low, i),
			Close:     at(quote.Close, i),
			Volume:    at(quote.Volume, i),
		})
	}

	slices.SortFunc(timeSeries, func(a, b *m.TimeSeriesData) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return &m.TimeSeriesResult{
		Metadata:   metadata,
		TimeSeries: timeSeries,
	}, nil
}

// at tolerates quote arrays shorter than the timestamp array.
func at(values []null.Float, i int) null.Float {
	if i < len(values) {
		return values[i]
	}
	return null.Float{}
}

func getTimeZone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.WithError(err).Warnf("time zone %s is not recognized, using UTC", name)
		return time.UTC
	}

	return loc
}
