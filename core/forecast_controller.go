package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fx.service/api/yahoo"
	"fx.service/cache"
	ex "fx.service/data/extensions"
	"fx.service/forecast"
	sm "fx.service/models"
)

// ErrForecastUnavailable is returned when no model could be trained or
// loaded to answer a forecast.
var ErrForecastUnavailable = errors.New("forecast is not available")

var predictionsKey = "predictions:" + yahoo.SymbolUSDIDR

type cachedPredictions struct {
	Predictions []float64 `json:"predictions"`
	TrainedAt   time.Time `json:"trained_at"`
}

// GetPredictions returns the next horizon USD/IDR closes. Predictions are
// cached for the configured ttl. A missing or stale model is retrained on
// rows first; if that fails the previous model keeps answering.
func (sc *ServiceContext) GetPredictions(ctx context.Context, horizon int, rows []forecast.Row) ([]float64, error) {
	if horizon < 1 || horizon > sc.Config.Forecast.MaxHorizon {
		return nil, fmt.Errorf("%w: %d is outside 1..%d", forecast.ErrInvalidHorizon, horizon, sc.Config.Forecast.MaxHorizon)
	}

	cached, err := cache.GetJSON[cachedPredictions](ctx, sc.Cache, predictionsKey)
	switch {
	case err == nil && len(cached.Predictions) >= horizon:
		return cached.Predictions[:horizon], nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		sc.Log.WithError(err).Warn("error reading cached predictions")
	}

	bundle, err := sc.ensureBundle(ctx, rows)
	if err != nil {
		return nil, err
	}

	predictions, err := bundle.Forecast(sc.Config.Forecast.MaxHorizon)
	if err != nil {
		return nil, fmt.Errorf("error forecasting %s: %w", yahoo.SymbolUSDIDR, err)
	}

	entry := cachedPredictions{Predictions: predictions, TrainedAt: bundle.TrainedAt}
	if err := cache.SetJSON(ctx, sc.Cache, predictionsKey, entry, sc.Config.Forecast.CacheTTL); err != nil {
		sc.Log.WithError(err).Warn("error caching predictions")
	}

	return predictions[:horizon], nil
}

func (sc *ServiceContext) ensureBundle(ctx context.Context, rows []forecast.Row) (*forecast.Bundle, error) {
	current := sc.Session.Bundle()
	if current != nil && time.Since(current.TrainedAt) <= sc.Config.Forecast.CacheTTL {
		return current, nil
	}

	trained, err := sc.RetrainForecast(ctx, rows)
	if err == nil {
		return trained, nil
	}
	if current != nil {
		sc.Log.WithError(err).Warn("retraining failed, keeping previous model")
		return current, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrForecastUnavailable, err)
}

// RetrainForecast trains a new model on rows and records the run when a
// database is configured. Cached predictions are dropped on success.
func (sc *ServiceContext) RetrainForecast(ctx context.Context, rows []forecast.Row) (*forecast.Bundle, error) {
	start := time.Now()
	cfg := sc.Session.Config()
	log := sc.Log.WithFields(logrus.Fields{
		"symbol": yahoo.SymbolUSDIDR,
		"rows":   len(rows),
	})

	if sc.Session.Training() {
		return nil, forecast.ErrTrainingInFlight
	}

	runId, recorded := sc.insertForecastRun(ctx, cfg)

	log.Infof("training forecast model (time: %v)", time.Since(start))
	bundle, err := sc.Session.Train(ctx, rows)
	if err != nil {
		log.WithError(err).Error("error training forecast model")
		if recorded {
			// the run is closed out even when ctx is what failed
			if uerr := sc.Postgres.UpdateForecastRunAsFailure(context.WithoutCancel(ctx), runId, err.Error()); uerr != nil {
				log.WithError(uerr).Error("error updating forecast run as failure")
			}
		}
		return nil, err
	}

	if recorded {
		if err := sc.Postgres.UpdateForecastRunAsSuccess(ctx, runId, int32(bundle.Rows), int32(bundle.Windows), bundle.FinalLoss()); err != nil {
			log.WithError(err).Error("error updating forecast run as success")
		}
	}

	if err := sc.Cache.Delete(ctx, predictionsKey); err != nil {
		log.WithError(err).Warn("error dropping cached predictions")
	}

	log.WithField("loss", bundle.FinalLoss()).Infof("forecast model ready (time: %v)", time.Since(start))
	return bundle, nil
}

func (sc *ServiceContext) insertForecastRun(ctx context.Context, cfg forecast.Config) (int32, bool) {
	if sc.Postgres == nil {
		return 0, false
	}

	runId, err := sc.Postgres.InsertForecastRun(ctx, yahoo.SymbolUSDIDR, int32(sc.Config.Forecast.MaxHorizon), int32(cfg.Epochs))
	if err != nil {
		sc.Log.WithError(err).Warn("error inserting forecast run history")
		return 0, false
	}
	return runId, true
}

// RefreshForecast reloads the history, retrains and warms the prediction
// cache. Old run history is pruned afterwards.
func (sc *ServiceContext) RefreshForecast(ctx context.Context) error {
	bars, err := sc.LoadUSDIDRHistory(ctx)
	if err != nil {
		return err
	}

	rows := ApplyTechnicalIndicators(bars)
	if _, err := sc.RetrainForecast(ctx, rows); err != nil {
		return err
	}

	if _, err := sc.GetPredictions(ctx, sc.Config.Forecast.MaxHorizon, rows); err != nil {
		return err
	}

	if sc.Postgres != nil && sc.Config.Forecast.RunRetention > 0 {
		removed, err := sc.Postgres.DeleteForecastRunsBefore(ctx, time.Now().Add(-sc.Config.Forecast.RunRetention))
		if err != nil {
			sc.Log.WithError(err).Warn("error pruning forecast run history")
		} else if removed > 0 {
			sc.Log.WithField("removed", removed).Info("pruned forecast run history")
		}
	}
	return nil
}

// StartRefreshForecast runs RefreshForecast in the background unless a
// requested refresh or a training is already running. It reports whether a
// refresh was started.
func (sc *ServiceContext) StartRefreshForecast(ctx context.Context) bool {
	if sc.Session.Training() || !sc.refreshing.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer sc.refreshing.Store(false)
		err := sc.RefreshForecast(ctx)
		switch {
		case errors.Is(err, forecast.ErrTrainingInFlight):
			sc.Log.WithError(err).Debug("requested retrain overlapped a running one")
		case err != nil:
			sc.Log.WithError(err).Error("error in requested retrain")
		}
	}()
	return true
}

// GetForecast answers the forecast endpoint. History is only loaded when the
// model has to be (re)trained.
func (sc *ServiceContext) GetForecast(ctx context.Context, days int) (*sm.ForecastResponse, error) {
	var rows []forecast.Row
	if b := sc.Session.Bundle(); b == nil || time.Since(b.TrainedAt) > sc.Config.Forecast.CacheTTL {
		bars, err := sc.LoadUSDIDRHistory(ctx)
		if err != nil {
			sc.Log.WithError(err).Warn("error loading history for forecast")
		}
		rows = ApplyTechnicalIndicators(bars)
	}

	predictions, err := sc.GetPredictions(ctx, days, rows)
	if err != nil {
		return nil, err
	}

	res := &sm.ForecastResponse{
		Symbol:      yahoo.SymbolUSDIDR,
		Days:        days,
		Predictions: toPredictionPoints(predictions),
	}
	if b := sc.Session.Bundle(); b != nil {
		res.TrainedAt = b.TrainedAt
		res.LastDate = ex.FmtShort(b.LastDate)
		res.Rows = b.Rows
		res.Windows = b.Windows
		res.FinalLoss = b.FinalLoss()
	}
	return res, nil
}
