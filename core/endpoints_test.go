package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx.service/api/gemini"
	dm "fx.service/data/models"
	sm "fx.service/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func serve(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var res T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func TestGetHttpServer_UsesConfiguredTimeouts(t *testing.T) {
	sc, _ := newTestContext(t)

	server := GetHttpServer(sc)
	assert.Equal(t, ":8080", server.Addr)
	assert.Equal(t, sc.Config.Server.WriteTimeout, server.WriteTimeout)
	assert.NotNil(t, server.Handler)
}

func TestPing(t *testing.T) {
	sc, _ := newTestContext(t)

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestDashboard_RejectsBadForecastDays(t *testing.T) {
	sc, up := newTestContext(t)
	router := NewRouter(sc)

	for _, days := range []string{"abc", "0", "61"} {
		w := serve(t, router, http.MethodGet, "/api/data?forecast_days="+days, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, days)
		assert.Contains(t, decode[sm.ErrorResponse](t, w).Error, "forecast_days")
	}
	assert.EqualValues(t, 0, up.yahoo.Load())
}

func TestDashboard_AssemblesEverySection(t *testing.T) {
	sc, up := newTestContext(t)

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/data?forecast_days=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[sm.DashboardResponse](t, w)

	assert.Equal(t, 3.5, res.InflationUS.Float64)
	assert.Equal(t, sm.TrendUp, res.InflationUSTrend)
	assert.Equal(t, sm.TrendUp, res.BIRateTrend)
	assert.Equal(t, sm.TrendDown, res.FedRateTrend)
	assert.Equal(t, sm.TrendUp, res.JKSETrend)
	assert.Equal(t, sm.TrendDown, res.SP500Trend)

	require.Len(t, res.USDIDRHistory, fixtureDays)
	assert.Equal(t, "2023-01-02", res.USDIDRHistory[0].Date)
	require.Len(t, res.USDIDRData, fixtureDays)
	assert.True(t, res.USDIDRData[fixtureDays-1].RSI.Valid)

	closes := fixtureCloses(fixtureDays)
	assert.InDelta(t, closes[fixtureDays-1], res.CurrentUSDIDR.Float64, 1e-6)

	require.Len(t, res.USDIDRPredictions, 5)
	assert.Equal(t, 5, res.USDIDRPredictions[4].Day)
	assert.Equal(t, geminiAnswer, res.AIInsight)
	assert.EqualValues(t, 1, up.gemini.Load())
}

func TestDashboard_DefaultsToConfiguredHorizon(t *testing.T) {
	sc, _ := newTestContext(t)

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[sm.DashboardResponse](t, w).USDIDRPredictions, sc.Config.Forecast.DefaultHorizon)
}

func TestNews(t *testing.T) {
	sc, _ := newTestContext(t)

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/news", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[sm.NewsResponse](t, w)
	require.Len(t, res.News, 1)
	assert.Equal(t, "Rupiah melemah", res.News[0].Headline)
	assert.Equal(t, "Sindonews - Ekbis", res.News[0].Source)
}

func TestAIRecommendation_Validation(t *testing.T) {
	sc, up := newTestContext(t)
	router := NewRouter(sc)

	w := serve(t, router, http.MethodPost, "/api/ai-recommendation", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No JSON data provided", decode[sm.ErrorResponse](t, w).Error)

	w = serve(t, router, http.MethodPost, "/api/ai-recommendation", `{"question":"beli?"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Session ID is required.", decode[sm.ErrorResponse](t, w).Error)

	assert.EqualValues(t, 0, up.gemini.Load())
}

func TestAIRecommendation_KeepsConversationPerSession(t *testing.T) {
	sc, _ := newTestContext(t)
	router := NewRouter(sc)

	w := serve(t, router, http.MethodPost, "/api/ai-recommendation", `{"question":"Beli sekarang?","session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[sm.ChatResponse](t, w).ChatHistory
	require.Len(t, history, 3)
	assert.Equal(t, gemini.Message{Role: gemini.RoleAssistant, Content: gemini.WelcomeMessage}, history[0])
	assert.Equal(t, gemini.Message{Role: gemini.RoleUser, Content: "Beli sekarang?"}, history[1])
	assert.Equal(t, gemini.Message{Role: gemini.RoleAssistant, Content: geminiAnswer}, history[2])

	w = serve(t, router, http.MethodPost, "/api/ai-recommendation", `{"session_id":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	history = decode[sm.ChatResponse](t, w).ChatHistory
	require.Len(t, history, 5)
	assert.Equal(t, gemini.DefaultQuestion, history[3].Content)

	w = serve(t, router, http.MethodPost, "/api/ai-recommendation", `{"question":"Jual?","session_id":"other"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[sm.ChatResponse](t, w).ChatHistory, 3)
}

func TestForecast(t *testing.T) {
	sc, _ := newTestContext(t)
	router := NewRouter(sc)

	w := serve(t, router, http.MethodGet, "/api/forecast?days=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, router, http.MethodGet, "/api/forecast?days=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[sm.ServiceResponse[sm.ForecastResponse]](t, w)
	require.NotNil(t, res.Data)
	assert.Empty(t, res.Error)
	assert.Equal(t, 3, res.Data.Days)
	assert.Len(t, res.Data.Predictions, 3)
	assert.False(t, res.Data.TrainedAt.IsZero())
}

func TestForecast_UnavailableWithoutHistory(t *testing.T) {
	sc, up := newTestContext(t)
	up.yahooDown.Store(true)

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/forecast", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, decode[sm.ServiceResponse[any]](t, w).Error)
}

func TestForecastRetrain_RunsInBackground(t *testing.T) {
	sc, _ := newTestContext(t)

	w := serve(t, NewRouter(sc), http.MethodPost, "/api/forecast/retrain", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool { return sc.Session.Bundle() != nil && !sc.refreshing.Load() }, 30*time.Second, 10*time.Millisecond)
}

func TestForecastRetrain_ConflictsWithRunningRefresh(t *testing.T) {
	sc, up := newTestContext(t)
	sc.refreshing.Store(true)

	w := serve(t, NewRouter(sc), http.MethodPost, "/api/forecast/retrain", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode[sm.ServiceResponse[any]](t, w).Error, "training")
	assert.EqualValues(t, 0, up.yahoo.Load())
	assert.Nil(t, sc.Session.Bundle())
}

func TestForecastRuns_NeedsDatabase(t *testing.T) {
	sc, _ := newTestContext(t)

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/forecast/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestForecastRuns_LimitIsBounded(t *testing.T) {
	sc, _ := newTestContext(t)
	getMock(t, sc)
	router := NewRouter(sc)

	for _, limit := range []string{"0", "201", "x"} {
		w := serve(t, router, http.MethodGet, "/api/forecast/runs?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, limit)
	}
}

func TestForecastRuns_ListsRecentRuns(t *testing.T) {
	sc, _ := newTestContext(t)
	mock := getMock(t, sc)
	started := time.Date(2025, time.October, 31, 6, 0, 0, 0, time.UTC)

	mock.ExpectQuery(sqlLike("FROM forecast_run_history")).
		WithArgs(pgx.NamedArgs{"limit": int32(5)}).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "symbol", "horizon", "epochs", "rows", "windows",
			"final_loss", "status", "error_message", "started_at", "finished_at",
		}).AddRow(int32(3), "USDIDR=X", int32(60), int32(30), nil, nil,
			nil, dm.ForecastRunStatusFailure, "training canceled", started, started.Add(time.Minute)))

	w := serve(t, NewRouter(sc), http.MethodGet, "/api/forecast/runs?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[sm.ServiceResponse[sm.ForecastRunsResponse]](t, w)
	require.NotNil(t, res.Data)
	require.Len(t, res.Data.Runs, 1)
	assert.Equal(t, dm.ForecastRunStatusFailure, res.Data.Runs[0].Status)
	assert.Equal(t, "training canceled", res.Data.Runs[0].ErrorMessage.String)
	assert.False(t, res.Data.Runs[0].Rows.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
