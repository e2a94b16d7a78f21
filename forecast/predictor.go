package forecast

import (
	"fmt"
	"slices"
)

// Rollout produces horizon normalized predictions by feeding each prediction
// back as the newest step of the window.
//
// Future values of the non-target columns are unknown, so the appended step
// reuses the values of the step that drops off the front and only the target
// column carries the prediction. Error compounds with the horizon.
func Rollout(model *Model, window [][]float64, horizon, target int) ([]float64, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidHorizon, horizon)
	}
	if err := model.checkShape(window); err != nil {
		return nil, err
	}
	if target < 0 || target >= model.features {
		return nil, fmt.Errorf("%w: target column %d out of range", ErrShapeMismatch, target)
	}

	current := cloneRows(window)
	predictions := make([]float64, 0, horizon)

	for range horizon {
		next, err := model.Predict(current)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, next)

		step := slices.Clone(current[0])
		step[target] = next
		current = append(current[1:], step)
	}

	return predictions, nil
}
