package core

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fx.service/api/news"
	"fx.service/forecast"
	sm "fx.service/models"
)

const (
	chatErrorMessage = "Terjadi kesalahan saat memproses permintaan Anda. Silakan coba lagi nanti."
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

func GetHttpServer(sc *ServiceContext) *http.Server {
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", sc.Config.Server.Port),
		Handler:        NewRouter(sc),
		ReadTimeout:    sc.Config.Server.ReadTimeout,
		WriteTimeout:   sc.Config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return server
}

func NewRouter(sc *ServiceContext) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(sc.Log))

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     sc.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := engine.Group("/api")
	api.GET("/ping", func(c *gin.Context) { ping(c, sc) })
	api.GET("/data", func(c *gin.Context) { getDashboard(c, sc) })
	api.GET("/news", func(c *gin.Context) { getNews(c, sc) })
	api.POST("/ai-recommendation", func(c *gin.Context) { getAIRecommendation(c, sc) })
	api.GET("/forecast", func(c *gin.Context) { getForecast(c, sc) })
	api.POST("/forecast/retrain", func(c *gin.Context) { retrainForecast(c, sc) })
	api.GET("/forecast/runs", func(c *gin.Context) { getForecastRuns(c, sc) })

	return engine
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request handled")
	}
}

func ping(c *gin.Context, sc *ServiceContext) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func getDashboard(c *gin.Context, sc *ServiceContext) {
	days, err := parseDays(c, "forecast_days", sc)
	if err != nil {
		c.JSON(http.StatusBadRequest, sm.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, sc.GetDashboard(c.Request.Context(), days))
}

func getNews(c *gin.Context, sc *ServiceContext) {
	articles := sc.NewsClient.GetCombinedNews(c.Request.Context())
	if articles == nil {
		articles = []news.Article{}
	}
	c.JSON(http.StatusOK, sm.NewsResponse{News: articles})
}

func getAIRecommendation(c *gin.Context, sc *ServiceContext) {
	var req sm.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, sm.ErrorResponse{Error: "No JSON data provided"})
		return
	}

	history, err := sc.GetRecommendation(c.Request.Context(), req.SessionId, req.Question)
	switch {
	case errors.Is(err, ErrSessionRequired):
		c.JSON(http.StatusBadRequest, sm.ErrorResponse{Error: "Session ID is required."})
		return
	case err != nil:
		sc.Log.WithError(err).Error("error in ai recommendation")
		c.JSON(http.StatusInternalServerError, sm.ErrorResponse{Error: chatErrorMessage, Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, sm.ChatResponse{ChatHistory: history})
}

func getForecast(c *gin.Context, sc *ServiceContext) {
	days, err := parseDays(c, "days", sc)
	if err != nil {
		c.JSON(http.StatusBadRequest, sm.GetServiceResponseError(err.Error()))
		return
	}

	res, err := sc.GetForecast(c.Request.Context(), days)
	switch {
	case errors.Is(err, forecast.ErrInvalidHorizon):
		c.JSON(http.StatusBadRequest, sm.GetServiceResponseError(err.Error()))
		return
	case errors.Is(err, ErrForecastUnavailable):
		c.JSON(http.StatusServiceUnavailable, sm.GetServiceResponseError(err.Error()))
		return
	case err != nil:
		sc.Log.WithError(err).Error("error getting forecast")
		c.JSON(http.StatusInternalServerError, sm.GetServiceResponseError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, sm.GetServiceResponseOk(res))
}

func retrainForecast(c *gin.Context, sc *ServiceContext) {
	if !sc.StartRefreshForecast(sc.Context) {
		c.JSON(http.StatusConflict, sm.GetServiceResponseError(forecast.ErrTrainingInFlight.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "retraining started"})
}

func getForecastRuns(c *gin.Context, sc *ServiceContext) {
	if sc.Postgres == nil {
		c.JSON(http.StatusServiceUnavailable, sm.GetServiceResponseError("forecast run history requires a database"))
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			c.JSON(http.StatusBadRequest, sm.GetServiceResponseError(fmt.Sprintf("limit must be between 1 and %d", maxRunsLimit)))
			return
		}
		limit = n
	}

	runs, err := sc.Postgres.GetRecentForecastRuns(c.Request.Context(), int32(limit))
	if err != nil {
		sc.Log.WithError(err).Error("error getting forecast runs")
		c.JSON(http.StatusInternalServerError, sm.GetServiceResponseError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, sm.GetServiceResponseOk(&sm.ForecastRunsResponse{Runs: runs}))
}

// parseDays reads a forecast horizon query parameter, defaulting to the
// configured horizon.
func parseDays(c *gin.Context, name string, sc *ServiceContext) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return sc.Config.Forecast.DefaultHorizon, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > sc.Config.Forecast.MaxHorizon {
		return 0, fmt.Errorf("%s must be a whole number between 1 and %d", name, sc.Config.Forecast.MaxHorizon)
	}
	return days, nil
}
