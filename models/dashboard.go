package models

import (
	"time"

	"github.com/guregu/null/v6"

	"fx.service/api/gemini"
	"fx.service/api/news"
	dm "fx.service/data/models"
)

const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// Indicator is a latest value and its direction against the previous one.
// Value is null when the source could not be read.
type Indicator struct {
	Value null.Float
	Trend string
}

type EconomicIndicators struct {
	InflationUS Indicator
	InflationID Indicator
	BIRate      Indicator
	FedRate     Indicator
	JKSE        Indicator
	SP500       Indicator
}

type HistoryPoint struct {
	Date  string     `json:"Date"`
	Close null.Float `json:"Close"`
}

// IndicatorPoint is one day of the USD/IDR series with its technical
// indicators, keyed the way the dashboard charts them.
type IndicatorPoint struct {
	Date       string     `json:"Date"`
	Open       null.Float `json:"Open"`
	High       null.Float `json:"High"`
	Low        null.Float `json:"Low"`
	Close      null.Float `json:"Close"`
	MA50       null.Float `json:"MA_50"`
	MA200      null.Float `json:"MA_200"`
	MACDLine   null.Float `json:"MACD_line"`
	MACDSignal null.Float `json:"MACD_signal"`
	ROC        null.Float `json:"ROC"`
	Momentum   null.Float `json:"Momentum"`
	RSI        null.Float `json:"RSI"`
	UpperBand  null.Float `json:"Upper_Band"`
	LowerBand  null.Float `json:"Lower_Band"`
	CCI        null.Float `json:"CCI"`
}

type PredictionPoint struct {
	Day             int        `json:"day"`
	PredictedUSDIDR null.Float `json:"predicted_usdidr"`
}

type DashboardResponse struct {
	InflationUS       null.Float        `json:"inflation_us"`
	InflationUSTrend  string            `json:"inflation_us_trend"`
	InflationID       null.Float        `json:"inflation_id"`
	InflationIDTrend  string            `json:"inflation_id_trend"`
	BIRate            null.Float        `json:"bi_rate"`
	BIRateTrend       string            `json:"bi_rate_trend"`
	FedRate           null.Float        `json:"fed_rate"`
	FedRateTrend      string            `json:"fed_rate_trend"`
	JKSE              null.Float        `json:"jkse"`
	JKSETrend         string            `json:"jkse_trend"`
	SP500             null.Float        `json:"sp500"`
	SP500Trend        string            `json:"sp500_trend"`
	CurrentUSDIDR     null.Float        `json:"current_usdidr"`
	USDIDRTrend       string            `json:"usdidr_trend"`
	USDIDRHistory     []HistoryPoint    `json:"usdidr_history"`
	USDIDRData        []IndicatorPoint  `json:"usdidr_data"`
	USDIDRPredictions []PredictionPoint `json:"usdidr_predictions"`
	AIInsight         string            `json:"ai_insight"`
}

type NewsResponse struct {
	News []news.Article `json:"news"`
}

type ChatRequest struct {
	Question  string `json:"question"`
	SessionId string `json:"session_id"`
}

type ChatResponse struct {
	ChatHistory []gemini.Message `json:"chat_history"`
}

type ForecastResponse struct {
	Symbol      string            `json:"symbol"`
	Days        int               `json:"days"`
	Predictions []PredictionPoint `json:"predictions"`
	TrainedAt   time.Time         `json:"trained_at"`
	LastDate    string            `json:"last_date"`
	Rows        int               `json:"rows"`
	Windows     int               `json:"windows"`
	FinalLoss   float64           `json:"final_loss"`
}

type ForecastRunsResponse struct {
	Runs []*dm.ForecastRun `json:"runs"`
}
