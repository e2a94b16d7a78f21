package forecast

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Row is one dated record of the indicator history keyed by indicator name.
type Row struct {
	Date   time.Time
	Values map[string]float64
}

// Matrix is a row-major, chronologically ordered table of normalized values.
type Matrix [][]float64

// Bounds holds the min and max observed for a single column.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Scaler carries the per-column min-max parameters used to map values into
// [0,1] and back. It is never mutated after FitScaler returns.
type Scaler struct {
	Columns []string `json:"columns"`
	Bounds  []Bounds `json:"bounds"`
}

// FitScaler computes per-column min and max over rows for the given columns.
func FitScaler(rows []Row, columns []string) (*Scaler, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fitting scaler: %w", ErrInsufficientHistory)
	}

	bounds := make([]Bounds, len(columns))
	for j := range bounds {
		bounds[j] = Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
	}

	for i, row := range rows {
		for j, col := range columns {
			v, err := lookup(row, col, i)
			if err != nil {
				return nil, err
			}
			bounds[j].Min = math.Min(bounds[j].Min, v)
			bounds[j].Max = math.Max(bounds[j].Max, v)
		}
	}

	return &Scaler{
		Columns: slices.Clone(columns),
		Bounds:  bounds,
	}, nil
}

// Transform maps rows into a normalized matrix, columns in scaler order.
func (s *Scaler) Transform(rows []Row) (Matrix, error) {
	res := make(Matrix, len(rows))
	for i, row := range rows {
		res[i] = make([]float64, len(s.Columns))
		for j, col := range s.Columns {
			v, err := lookup(row, col, i)
			if err != nil {
				return nil, err
			}
			res[i][j] = s.Scale(j, v)
		}
	}
	return res, nil
}

// Scale maps v into [0,1] using column j's bounds. A constant column maps to 0.
func (s *Scaler) Scale(j int, v float64) float64 {
	b := s.Bounds[j]
	span := b.Max - b.Min
	if span == 0 {
		return 0
	}
	return (v - b.Min) / span
}

// Inverse maps a normalized value of column j back to the original scale.
func (s *Scaler) Inverse(j int, v float64) float64 {
	b := s.Bounds[j]
	return v*(b.Max-b.Min) + b.Min
}

// Index returns the position of column in the scaler, or -1.
func (s *Scaler) Index(column string) int {
	return slices.Index(s.Columns, column)
}

// Degenerate reports the columns whose min equals their max.
func (s *Scaler) Degenerate() []string {
	var res []string
	for j, b := range s.Bounds {
		if b.Max == b.Min {
			res = append(res, s.Columns[j])
		}
	}
	return res
}

// Normalize sorts rows chronologically, fits a scaler on them and returns the
// normalized matrix together with the scaler.
func Normalize(rows []Row, columns []string) (Matrix, *Scaler, error) {
	sorted := sortChronologically(rows)

	scaler, err := FitScaler(sorted, columns)
	if err != nil {
		return nil, nil, err
	}

	m, err := scaler.Transform(sorted)
	if err != nil {
		return nil, nil, err
	}

	return m, scaler, nil
}

func sortChronologically(rows []Row) []Row {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b Row) int {
		return a.Date.Compare(b.Date)
	})
	return sorted
}

func lookup(row Row, col string, idx int) (float64, error) {
	v, ok := row.Values[col]
	if !ok {
		return 0, fmt.Errorf("row %d (%s): %w %q", idx, row.Date.Format(time.DateOnly), ErrMissingColumn, col)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("row %d (%s) column %q: %w", idx, row.Date.Format(time.DateOnly), col, ErrNonFiniteValue)
	}
	return v, nil
}
