package extensions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertAreEqual stops the test when a named value differs from expected.
func AssertAreEqual[T comparable](t testing.TB, name string, expected T, actual T) {
	t.Helper()
	require.Equalf(t, expected, actual, "value mismatch for %s", name)
}

func AssertNillability[T any](t testing.TB, name string, wantNil bool, actual *T) {
	t.Helper()
	if wantNil {
		require.Nilf(t, actual, "expected %s to be nil", name)
		return
	}
	require.NotNilf(t, actual, "expected %s to be set", name)
}

// AssertFinite stops the test on the first NaN or infinite value.
func AssertFinite(t testing.TB, name string, values ...float64) {
	t.Helper()
	for i, v := range values {
		require.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "%s[%d] is not finite: %v", name, i, v)
	}
}
