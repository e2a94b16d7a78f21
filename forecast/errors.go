package forecast

import "errors"

// input errors
var (
	ErrInsufficientHistory = errors.New("insufficient history for look-back window")
	ErrMissingColumn       = errors.New("missing indicator column")
	ErrNonFiniteValue      = errors.New("non-finite indicator value")
	ErrInvalidHorizon      = errors.New("forecast horizon must be positive")
	ErrInvalidConfig       = errors.New("invalid forecast configuration")
)

// training errors
var (
	ErrShapeMismatch        = errors.New("window shape does not match model input")
	ErrNumericalInstability = errors.New("training loss is not finite")
	ErrCanceled             = errors.New("training canceled")
)

// inference and session errors
var (
	ErrNoModel          = errors.New("no trained model available")
	ErrTrainingInFlight = errors.New("a training run is already in progress")
)
