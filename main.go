package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"fx.service/api/gemini"
	"fx.service/api/news"
	"fx.service/api/yahoo"
	"fx.service/cache"
	"fx.service/config"
	c "fx.service/core"
	r "fx.service/data/repos"
	"fx.service/forecast"
	"fx.service/logging"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logrus.Debugf(".env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	logrus.SetLevel(logger.GetLevel())
	logrus.SetFormatter(logger.Formatter)

	// postgres is optional, without it history is fetched from yahoo on every refresh
	var postgresConnection *r.Postgres
	if cfg.Database.URL != "" {
		postgresConnection, err = r.GetPostgresConnection(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer postgresConnection.Close()

		if err := postgresConnection.Ping(ctx); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
	}

	// redis is optional as well, the in-memory cache serves a single instance
	var store cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err := rc.Ping(ctx); err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		store = rc
	}
	defer store.Close()

	session, err := forecast.NewSession(c.ForecastConfig(cfg), logging.Component(logger, "forecast"))
	if err != nil {
		logger.Fatalf("Invalid forecast configuration: %v", err)
	}

	newsClient := news.GetClient()
	newsClient.Log = logging.Component(logger, "news")

	geminiClient := gemini.GetClient(cfg.Gemini.APIKey)
	geminiClient.Model = cfg.Gemini.Model
	geminiClient.Log = logging.Component(logger, "gemini")
	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, reports and chat will fall back to fixed messages")
	}

	sc := &c.ServiceContext{
		Context:      ctx,
		Config:       cfg,
		Log:          logging.Component(logger, "core"),
		Postgres:     postgresConnection,
		Cache:        store,
		Session:      session,
		YahooClient:  yahoo.GetClient(),
		NewsClient:   newsClient,
		GeminiClient: geminiClient,
	}

	scheduler, err := c.NewScheduler(sc, cfg.Forecast.RetrainCron)
	if err != nil {
		logger.Fatalf("Failed to create scheduler: %v", err)
	}
	scheduler.Start()
	if cfg.Forecast.TrainOnStart {
		go scheduler.RunNow()
	}

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc)

	// start http server in goroutine
	go func() {
		logger.Infof("Starting fx server on %s", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	// will wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	logger.Info("Received shutdown signal, shutting down gracefully...")

	// this gives the server 10 seconds to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Scheduled retrain still running at shutdown")
	}

	logger.Info("Server stopped successfully")
}
