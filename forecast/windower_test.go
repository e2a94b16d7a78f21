package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialMatrix(n, cols int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = float64(i*10 + j)
		}
	}
	return m
}

func TestMakeWindows_CountAndLabels(t *testing.T) {
	for _, tc := range []struct{ n, lookBack int }{{10, 1}, {10, 5}, {250, 5}, {6, 5}} {
		m := sequentialMatrix(tc.n, 3)
		windows := MakeWindows(m, tc.lookBack, 0)

		require.Len(t, windows, tc.n-tc.lookBack)
		for i, w := range windows {
			require.Len(t, w.Input, tc.lookBack)
			assert.Equal(t, m[i+tc.lookBack][0], w.Label, "window %d label", i)
			assert.Equal(t, m[i], w.Input[0], "window %d first row", i)
			assert.Equal(t, m[i+tc.lookBack-1], w.Input[tc.lookBack-1], "window %d last row", i)
		}
	}
}

func TestMakeWindows_UsesTargetColumn(t *testing.T) {
	m := sequentialMatrix(4, 3)
	windows := MakeWindows(m, 2, 2)

	require.Len(t, windows, 2)
	assert.Equal(t, 22.0, windows[0].Label)
	assert.Equal(t, 32.0, windows[1].Label)
}

func TestMakeWindows_LookBackNotShorterThanHistory(t *testing.T) {
	m := sequentialMatrix(5, 2)

	assert.Empty(t, MakeWindows(m, 5, 0))
	assert.Empty(t, MakeWindows(m, 6, 0))
	assert.Empty(t, MakeWindows(m, 0, 0))
	assert.Empty(t, MakeWindows(nil, 3, 0))
}

func TestMakeWindows_CopiesRows(t *testing.T) {
	m := sequentialMatrix(4, 2)
	windows := MakeWindows(m, 2, 0)

	m[0][0] = -1
	assert.Equal(t, 0.0, windows[0].Input[0][0])
}

func TestLatestWindow(t *testing.T) {
	m := sequentialMatrix(6, 2)

	w, err := LatestWindow(m, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{m[3], m[4], m[5]}, w)

	_, err = LatestWindow(m, 7)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}
