package forecast

import (
	"fmt"
	"runtime"
	"slices"
	"time"
)

// TechnicalColumns is the fixed, ordered list of indicators the model reads.
// Close comes first and is the forecast target.
var TechnicalColumns = []string{
	"Close",
	"MA_50",
	"MA_200",
	"MACD_line",
	"MACD_signal",
	"ROC",
	"Momentum",
	"RSI",
	"Upper_Band",
	"Lower_Band",
	"CCI",
}

const (
	TargetColumn = "Close"

	DefaultLookBack     = 5
	DefaultWarmUp       = 200
	DefaultHidden1      = 100
	DefaultHidden2      = 50
	DefaultDropoutRate  = 0.2
	DefaultEpochs       = 30
	DefaultBatchSize    = 32
	DefaultLearningRate = 0.001
	DefaultTrainTimeout = 10 * time.Minute
)

// Config describes a training run. The layer widths and dropout rate define
// the network; the rest are optimizer and runtime settings.
type Config struct {
	Columns      []string
	Target       string
	LookBack     int
	WarmUp       int // leading rows skipped while lagging indicators settle
	Hidden1      int
	Hidden2      int
	DropoutRate  float64
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
	Workers      int
	TrainTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Columns:      slices.Clone(TechnicalColumns),
		Target:       TargetColumn,
		LookBack:     DefaultLookBack,
		WarmUp:       DefaultWarmUp,
		Hidden1:      DefaultHidden1,
		Hidden2:      DefaultHidden2,
		DropoutRate:  DefaultDropoutRate,
		Epochs:       DefaultEpochs,
		BatchSize:    DefaultBatchSize,
		LearningRate: DefaultLearningRate,
		Seed:         42,
		Workers:      runtime.NumCPU(),
		TrainTimeout: DefaultTrainTimeout,
	}
}

// TargetIndex returns the position of the target column in Columns.
func (c Config) TargetIndex() int {
	return slices.Index(c.Columns, c.Target)
}

func (c Config) Validate() error {
	switch {
	case len(c.Columns) == 0:
		return fmt.Errorf("%w: no columns", ErrInvalidConfig)
	case c.TargetIndex() < 0:
		return fmt.Errorf("%w: target %q is not one of the columns", ErrInvalidConfig, c.Target)
	case c.LookBack <= 0:
		return fmt.Errorf("%w: look-back must be positive, got %d", ErrInvalidConfig, c.LookBack)
	case c.WarmUp < 0:
		return fmt.Errorf("%w: warm-up must not be negative, got %d", ErrInvalidConfig, c.WarmUp)
	case c.Hidden1 <= 0 || c.Hidden2 <= 0:
		return fmt.Errorf("%w: hidden widths must be positive, got %d/%d", ErrInvalidConfig, c.Hidden1, c.Hidden2)
	case c.DropoutRate < 0 || c.DropoutRate >= 1:
		return fmt.Errorf("%w: dropout rate must be in [0,1), got %v", ErrInvalidConfig, c.DropoutRate)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate must be positive, got %v", ErrInvalidConfig, c.LearningRate)
	}
	return nil
}
