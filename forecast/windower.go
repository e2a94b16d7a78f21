package forecast

import (
	"fmt"
	"slices"
)

// Window is a look-back slice of the normalized matrix and the target value
// of the row that follows it.
type Window struct {
	Input [][]float64
	Label float64
}

// MakeWindows slices m into len(m)-lookBack windows. It returns nothing when
// the matrix is not longer than the look-back.
func MakeWindows(m Matrix, lookBack, target int) []Window {
	if lookBack <= 0 || len(m) <= lookBack {
		return nil
	}

	windows := make([]Window, 0, len(m)-lookBack)
	for i := 0; i+lookBack < len(m); i++ {
		windows = append(windows, Window{
			Input: cloneRows(m[i : i+lookBack]),
			Label: m[i+lookBack][target],
		})
	}
	return windows
}

// LatestWindow returns a copy of the final lookBack rows of m, the input used
// to start a forecast.
func LatestWindow(m Matrix, lookBack int) ([][]float64, error) {
	if lookBack <= 0 || len(m) < lookBack {
		return nil, fmt.Errorf("latest window of %d rows from %d: %w", lookBack, len(m), ErrInsufficientHistory)
	}
	return cloneRows(m[len(m)-lookBack:]), nil
}

func cloneRows(rows [][]float64) [][]float64 {
	res := make([][]float64, len(rows))
	for i, r := range rows {
		res[i] = slices.Clone(r)
	}
	return res
}
