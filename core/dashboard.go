package core

import (
	"context"
	"math"
	"time"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"fx.service/api/gemini"
	"fx.service/api/news"
	ex "fx.service/data/extensions"
	"fx.service/forecast"
	sm "fx.service/models"
)

// marketState is everything the dashboard and the assistant reason about.
type marketState struct {
	economic    sm.EconomicIndicators
	bars        []Bar
	rows        []forecast.Row
	summary     USDIDRSummary
	predictions []float64
	articles    []news.Article
}

// loadMarketState gathers indicators, history and news concurrently, then
// forecasts horizon days. Every part degrades to empty on failure.
func (sc *ServiceContext) loadMarketState(ctx context.Context, horizon int) marketState {
	var st marketState

	var g errgroup.Group
	g.Go(func() error {
		st.economic = sc.LoadEconomicIndicators(ctx)
		return nil
	})
	g.Go(func() error {
		bars, err := sc.LoadUSDIDRHistory(ctx)
		if err != nil {
			sc.Log.WithError(err).Warn("error loading usd/idr history")
		}
		st.bars = bars
		return nil
	})
	g.Go(func() error {
		st.articles = sc.NewsClient.GetCombinedNews(ctx)
		return nil
	})
	_ = g.Wait()

	st.rows = ApplyTechnicalIndicators(st.bars)
	st.summary = SummarizeHistory(st.bars)

	predictions, err := sc.GetPredictions(ctx, horizon, st.rows)
	if err != nil {
		sc.Log.WithError(err).Warn("error getting usd/idr predictions")
	}
	st.predictions = predictions

	return st
}

func (st marketState) snapshot() gemini.Snapshot {
	s := gemini.Snapshot{
		FedRate:       st.economic.FedRate.Value,
		BIRate:        st.economic.BIRate.Value,
		InflationID:   st.economic.InflationID.Value,
		InflationUS:   st.economic.InflationUS.Value,
		JKSE:          st.economic.JKSE.Value,
		SP500:         st.economic.SP500.Value,
		Predictions:   st.predictions,
		NewsHeadlines: news.Headlines(st.articles),
	}
	if st.summary.Valid {
		s.CurrentUSDIDR = toNullFloat(st.summary.Current)
		s.USDIDRMonthAgo = toNullFloat(st.summary.MonthAgo)
	}
	return s
}

// GetDashboard assembles the dashboard payload with a forecast of
// forecastDays and the model-written market report.
func (sc *ServiceContext) GetDashboard(ctx context.Context, forecastDays int) *sm.DashboardResponse {
	start := time.Now()
	st := sc.loadMarketState(ctx, forecastDays)
	sc.Log.Debugf("loaded market state (time: %v)", time.Since(start))

	insight := sc.GeminiClient.Report(ctx, st.snapshot())

	e := st.economic
	res := &sm.DashboardResponse{
		InflationUS:       e.InflationUS.Value,
		InflationUSTrend:  e.InflationUS.Trend,
		InflationID:       e.InflationID.Value,
		InflationIDTrend:  e.InflationID.Trend,
		BIRate:            e.BIRate.Value,
		BIRateTrend:       e.BIRate.Trend,
		FedRate:           e.FedRate.Value,
		FedRateTrend:      e.FedRate.Trend,
		JKSE:              e.JKSE.Value,
		JKSETrend:         e.JKSE.Trend,
		SP500:             e.SP500.Value,
		SP500Trend:        e.SP500.Trend,
		USDIDRTrend:       st.summary.Trend,
		USDIDRHistory:     toHistoryPoints(st.bars),
		USDIDRData:        toIndicatorPoints(st.rows),
		USDIDRPredictions: toPredictionPoints(st.predictions),
		AIInsight:         insight,
	}
	if st.summary.Valid {
		res.CurrentUSDIDR = toNullFloat(st.summary.Current)
	}

	sc.Log.Infof("dashboard assembled (time: %v)", time.Since(start))
	return res
}

func toHistoryPoints(bars []Bar) []sm.HistoryPoint {
	res := make([]sm.HistoryPoint, len(bars))
	for i, b := range bars {
		res[i] = sm.HistoryPoint{Date: ex.FmtShort(b.Date), Close: toNullFloat(b.Close)}
	}
	return res
}

func toIndicatorPoints(rows []forecast.Row) []sm.IndicatorPoint {
	res := make([]sm.IndicatorPoint, len(rows))
	for i, r := range rows {
		v := func(name string) null.Float { return toNullFloat(r.Values[name]) }
		res[i] = sm.IndicatorPoint{
			Date:       ex.FmtShort(r.Date),
			Open:       v("Open"),
			High:       v("High"),
			Low:        v("Low"),
			Close:      v("Close"),
			MA50:       v("MA_50"),
			MA200:      v("MA_200"),
			MACDLine:   v("MACD_line"),
			MACDSignal: v("MACD_signal"),
			ROC:        v("ROC"),
			Momentum:   v("Momentum"),
			RSI:        v("RSI"),
			UpperBand:  v("Upper_Band"),
			LowerBand:  v("Lower_Band"),
			CCI:        v("CCI"),
		}
	}
	return res
}

func toPredictionPoints(predictions []float64) []sm.PredictionPoint {
	res := make([]sm.PredictionPoint, len(predictions))
	for i, p := range predictions {
		res[i] = sm.PredictionPoint{Day: i + 1, PredictedUSDIDR: toNullFloat(p)}
	}
	return res
}

// toNullFloat maps NaN and infinities to null so they encode as JSON null.
func toNullFloat(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}
