package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"fx.service/forecast"
)

// Scheduler retrains the forecast on a cron schedule.
type Scheduler struct {
	Cron *cron.Cron
	sc   *ServiceContext
}

// NewScheduler registers the retrain job. schedule uses the six-field form with
// seconds. Runs that overlap a still running one are skipped.
func NewScheduler(sc *ServiceContext, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		sc: sc,
	}

	if _, err := s.Cron.AddFunc(schedule, s.retrainTask); err != nil {
		return nil, fmt.Errorf("register retrain task: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.sc.Log.Info("scheduler started")
}

// Stop stops scheduling and returns a context that is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.Cron.Stop()
	s.sc.Log.Info("scheduler stopped")
	return ctx
}

// RunNow executes the retrain job immediately.
func (s *Scheduler) RunNow() {
	s.retrainTask()
}

func (s *Scheduler) retrainTask() {
	s.sc.Log.Info("running scheduled retrain")
	err := s.sc.RefreshForecast(s.sc.Context)
	switch {
	case errors.Is(err, forecast.ErrTrainingInFlight):
		s.sc.Log.Debug("skipping scheduled retrain, training in flight")
		return
	case err != nil:
		s.sc.Log.WithError(err).Error("scheduled retrain failed")
		return
	}
	s.sc.Log.Info("scheduled retrain finished")
}
