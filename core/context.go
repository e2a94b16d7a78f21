package core

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"fx.service/api/gemini"
	"fx.service/api/news"
	"fx.service/api/yahoo"
	"fx.service/cache"
	"fx.service/config"
	r "fx.service/data/repos"
	"fx.service/forecast"
)

// ServiceContext carries the dependencies every controller needs. Postgres is
// nil when no database is configured.
type ServiceContext struct {
	Context      context.Context
	Config       *config.Config
	Log          logrus.FieldLogger
	Postgres     *r.Postgres
	Cache        cache.Cache
	Session      *forecast.Session
	YahooClient  yahoo.YahooClient
	NewsClient   news.NewsClient
	GeminiClient gemini.GeminiClient

	refreshing atomic.Bool
}

// ForecastConfig maps the service configuration onto a training config.
func ForecastConfig(cfg *config.Config) forecast.Config {
	fc := forecast.DefaultConfig()
	fc.LookBack = cfg.Forecast.LookBack
	fc.WarmUp = cfg.Forecast.WarmUp
	fc.Epochs = cfg.Forecast.Epochs
	fc.BatchSize = cfg.Forecast.BatchSize
	fc.LearningRate = cfg.Forecast.LearningRate
	fc.Seed = cfg.Forecast.Seed
	fc.TrainTimeout = cfg.Forecast.TrainTimeout
	if cfg.Forecast.Workers > 0 {
		fc.Workers = cfg.Forecast.Workers
	}
	return fc
}
