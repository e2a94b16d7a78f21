package forecast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Bundle pairs a trained model with the normalization parameters it was
// trained under. A published bundle is never modified.
type Bundle struct {
	Model      *Model
	Scaler     *Scaler
	LastWindow [][]float64
	Target     int
	TrainedAt  time.Time
	Rows       int
	Windows    int
	Losses     []float64
	LastDate   time.Time
}

// FinalLoss is the mean training loss of the last epoch.
func (b *Bundle) FinalLoss() float64 {
	if len(b.Losses) == 0 {
		return 0
	}
	return b.Losses[len(b.Losses)-1]
}

// Forecast rolls the model forward horizon steps from the latest window and
// returns the predictions in the original exchange-rate scale.
func (b *Bundle) Forecast(horizon int) ([]float64, error) {
	normalized, err := Rollout(b.Model, b.LastWindow, horizon, b.Target)
	if err != nil {
		return nil, err
	}

	res := make([]float64, len(normalized))
	for i, v := range normalized {
		res[i] = b.Scaler.Inverse(b.Target, v)
	}
	return res, nil
}

// Session owns the forecasting state of one caller: the current bundle and a
// guard that keeps a single training run in flight.
type Session struct {
	cfg      Config
	log      logrus.FieldLogger
	inFlight atomic.Bool
	bundle   atomic.Pointer[Bundle]
}

func NewSession(cfg Config, log logrus.FieldLogger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{cfg: cfg, log: log}, nil
}

func (s *Session) Config() Config { return s.cfg }

// Bundle returns the most recently trained bundle, or nil before the first
// successful training run.
func (s *Session) Bundle() *Bundle { return s.bundle.Load() }

// Training reports whether a training run is in progress.
func (s *Session) Training() bool { return s.inFlight.Load() }

// Train rebuilds the model from scratch on rows and publishes the result.
// The previous bundle stays in place if training fails.
func (s *Session) Train(ctx context.Context, rows []Row) (*Bundle, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrTrainingInFlight
	}
	defer s.inFlight.Store(false)

	if s.cfg.TrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TrainTimeout)
		defer cancel()
	}

	start := time.Now()
	prepared, err := Prepare(rows, s.cfg)
	if err != nil {
		return nil, err
	}

	for _, col := range prepared.Scaler.Degenerate() {
		s.log.WithField("column", col).Warn("constant column normalized to zero")
	}

	s.log.WithFields(logrus.Fields{
		"rows":     len(prepared.Matrix),
		"windows":  len(prepared.Windows),
		"lookBack": s.cfg.LookBack,
		"epochs":   s.cfg.Epochs,
	}).Info("training forecast model")

	model := NewModel(s.cfg)
	losses, err := model.Fit(ctx, prepared.Windows, s.cfg, s.log)
	if err != nil {
		return nil, fmt.Errorf("training forecast model: %w", err)
	}

	latest, err := LatestWindow(prepared.Matrix, s.cfg.LookBack)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Model:      model,
		Scaler:     prepared.Scaler,
		LastWindow: latest,
		Target:     s.cfg.TargetIndex(),
		TrainedAt:  time.Now(),
		Rows:       len(prepared.Matrix),
		Windows:    len(prepared.Windows),
		Losses:     losses,
		LastDate:   prepared.LastDate,
	}
	s.bundle.Store(b)

	s.log.WithFields(logrus.Fields{
		"loss":    b.FinalLoss(),
		"elapsed": time.Since(start).String(),
	}).Info("forecast model trained")

	return b, nil
}

// Forecast predicts horizon steps with the current bundle.
func (s *Session) Forecast(horizon int) ([]float64, error) {
	b := s.Bundle()
	if b == nil {
		return nil, ErrNoModel
	}
	return b.Forecast(horizon)
}

// Prepared is the training input derived from a raw history.
type Prepared struct {
	Matrix   Matrix
	Scaler   *Scaler
	Windows  []Window
	LastDate time.Time
}

// Prepare orders rows chronologically, drops the warm-up region, normalizes
// the remainder and cuts it into windows.
func Prepare(rows []Row, cfg Config) (*Prepared, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sorted := sortChronologically(rows)
	if len(sorted) <= cfg.WarmUp+cfg.LookBack {
		return nil, fmt.Errorf("%d rows with warm-up %d and look-back %d: %w", len(sorted), cfg.WarmUp, cfg.LookBack, ErrInsufficientHistory)
	}
	tail := sorted[cfg.WarmUp:]

	m, scaler, err := Normalize(tail, cfg.Columns)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Matrix:   m,
		Scaler:   scaler,
		Windows:  MakeWindows(m, cfg.LookBack, cfg.TargetIndex()),
		LastDate: tail[len(tail)-1].Date,
	}, nil
}
