package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineStringFromXY_Valid(t *testing.T) {
	ls, err := LineStringFromXY([][]float64{{100.5, 200.25}, {300.75, 400.5}, {500, 600}})
	require.NoError(t, err)

	v := Vertices(ls)
	require.Len(t, v, 3)
	assert.Equal(t, 100.5, v[0].X)
	assert.Equal(t, 200.25, v[0].Y)
	assert.Equal(t, 500.0, v[2].X)
	assert.Equal(t, 600.0, v[2].Y)
}

func TestLineStringFromXY_TooFewPoints(t *testing.T) {
	_, err := LineStringFromXY([][]float64{{100, 200}})
	require.Error(t, err)
}

func TestLineStringFromXY_InsufficientCoordinates(t *testing.T) {
	_, err := LineStringFromXY([][]float64{{100}, {200, 300}})
	require.Error(t, err)
}

func TestDistanceToLine(t *testing.T) {
	ls, err := LineStringFromXY([][]float64{{0, 0}, {10, 0}})
	require.NoError(t, err)

	d, ok := DistanceToLine(ls, 5, 3)
	require.True(t, ok)
	assert.InDelta(t, 3.0, d, 1e-9)

	d, ok = DistanceToLine(ls, 13, 4)
	require.True(t, ok)
	assert.InDelta(t, 5.0, d, 1e-9)
}
