package core

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	c "fx.service/api"
	"fx.service/api/gemini"
	"fx.service/api/news"
	"fx.service/api/yahoo"
	"fx.service/cache"
	"fx.service/config"
	r "fx.service/data/repos"
	"fx.service/forecast"
)

const (
	fixtureDays  = 260
	geminiAnswer = "Tahan USD/IDR untuk sementara."
)

var fixtureStart = time.Date(2023, time.January, 2, 0, 0, 0, 0, jakarta)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   time.Minute,
		},
		Forecast: config.ForecastConfig{
			DefaultHorizon: 14,
			MaxHorizon:     60,
			CacheTTL:       time.Hour,
			SyncInterval:   6 * time.Hour,
			RunRetention:   90 * 24 * time.Hour,
		},
		Economic: config.EconomicConfig{
			InflationUSPath: "testdata/inflation_rate.csv",
			InflationIDPath: "testdata/inflation_id.csv",
			BIRatePath:      "testdata/bi_rate.csv",
			FedRatePath:     "testdata/fed_funds_rate.csv",
		},
	}
}

// testForecastConfig keeps training to a fraction of a second.
func testForecastConfig() forecast.Config {
	cfg := forecast.DefaultConfig()
	cfg.LookBack = 3
	cfg.Hidden1 = 4
	cfg.Hidden2 = 3
	cfg.Epochs = 2
	cfg.BatchSize = 16
	cfg.Workers = 2
	cfg.WarmUp = 200
	cfg.TrainTimeout = time.Minute
	return cfg
}

// fixtureCloses is a rising USD/IDR series with regular pullbacks.
func fixtureCloses(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = 15000 + 3*float64(i) + 60*math.Sin(float64(i)/5)
	}
	return res
}

// businessDays returns n weekdays starting at from.
func businessDays(from time.Time, n int) []time.Time {
	res := make([]time.Time, 0, n)
	for day := from; len(res) < n; day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		res = append(res, day)
	}
	return res
}

func chartJSON(symbol string, days []time.Time, closes []float64) []byte {
	timestamps := make([]int64, len(days))
	open := make([]float64, len(days))
	high := make([]float64, len(days))
	low := make([]float64, len(days))
	volume := make([]float64, len(days))
	for i, d := range days {
		timestamps[i] = d.Unix()
		open[i] = closes[i] - 5
		high[i] = closes[i] + 20
		low[i] = closes[i] - 20
	}

	payload := map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{
					"symbol":               symbol,
					"currency":             "IDR",
					"exchangeTimezoneName": "Asia/Jakarta",
					"regularMarketTime":    timestamps[len(timestamps)-1],
				},
				"timestamp": timestamps,
				"indicators": map[string]any{
					"quote": []any{map[string]any{
						"open":   open,
						"high":   high,
						"low":    low,
						"close":  closes,
						"volume": volume,
					}},
				},
			}},
			"error": nil,
		},
	}

	raw, _ := json.Marshal(payload)
	return raw
}

// upstreams fakes Yahoo, the news aggregator and Gemini and counts the
// calls each one receives.
type upstreams struct {
	yahoo  atomic.Int32
	news   atomic.Int32
	gemini atomic.Int32

	yahooDown atomic.Bool
}

func (u *upstreams) yahooHandler(w http.ResponseWriter, r *http.Request) {
	u.yahoo.Add(1)
	if u.yahooDown.Load() {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")
	recent := businessDays(time.Date(2024, time.October, 1, 0, 0, 0, 0, jakarta), 2)
	switch symbol {
	case yahoo.SymbolUSDIDR:
		w.Write(chartJSON(symbol, businessDays(fixtureStart, fixtureDays), fixtureCloses(fixtureDays)))
	case yahoo.SymbolJKSE:
		w.Write(chartJSON(symbol, recent, []float64{7100, 7150}))
	case yahoo.SymbolSP500:
		w.Write(chartJSON(symbol, recent, []float64{5200, 5150}))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (u *upstreams) newsHandler(w http.ResponseWriter, r *http.Request) {
	u.news.Add(1)
	if r.URL.Path != "/sindonews/ekbis" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Write([]byte(`{"success":true,"data":{"posts":[
		{"title":"Rupiah melemah","description":"Kurs naik","pubDate":"2024-10-01T10:00:00+07:00","link":"https://a/1","thumbnail":"https://a/1.jpg"}
	]}}`))
}

func (u *upstreams) geminiHandler(w http.ResponseWriter, r *http.Request) {
	u.gemini.Add(1)
	raw, _ := json.Marshal(geminiAnswer)
	w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":` + string(raw) + `}]}}]}`))
}

func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

// newTestContext wires a service context against fake upstreams, an
// in-memory cache and no database.
func newTestContext(t *testing.T) (*ServiceContext, *upstreams) {
	t.Helper()
	u := &upstreams{}

	yahooSrv := httptest.NewServer(http.HandlerFunc(u.yahooHandler))
	newsSrv := httptest.NewServer(http.HandlerFunc(u.newsHandler))
	geminiSrv := httptest.NewServer(http.HandlerFunc(u.geminiHandler))
	t.Cleanup(yahooSrv.Close)
	t.Cleanup(newsSrv.Close)
	t.Cleanup(geminiSrv.Close)

	log, _ := test.NewNullLogger()
	opts := []c.Option{c.WithScheme("http"), c.WithRateLimit(1000, 1000)}

	session, err := forecast.NewSession(testForecastConfig(), log)
	require.NoError(t, err)

	nc := news.GetClientForHost(hostOf(newsSrv), opts...)
	nc.Log = log
	gc := gemini.GetClientForHost(hostOf(geminiSrv), "secret", opts...)
	gc.Log = log

	sc := &ServiceContext{
		Context:      context.Background(),
		Config:       testConfig(),
		Log:          log,
		Cache:        cache.NewMemoryCache(),
		Session:      session,
		YahooClient:  yahoo.GetClientForHost(hostOf(yahooSrv), opts...),
		NewsClient:   nc,
		GeminiClient: gc,
	}
	return sc, u
}

// fixtureRows runs the fixture series through cleaning and indicators.
func fixtureRows(t *testing.T, sc *ServiceContext) []forecast.Row {
	t.Helper()
	bars, err := sc.LoadUSDIDRHistory(context.Background())
	require.NoError(t, err)
	return ApplyTechnicalIndicators(bars)
}

func withPostgres(sc *ServiceContext, db r.DatabasePool) {
	sc.Postgres = r.NewPostgres(db)
}
