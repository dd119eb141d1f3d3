package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmap-service/internal/domain/parking"
)

func TestEstimateHomography_MapsReferencePoints(t *testing.T) {
	src := [4]parking.Point{{X: 120, Y: 340}, {X: 910, Y: 300}, {X: 1020, Y: 780}, {X: 60, Y: 820}}

	h, err := EstimateHomography(src, SignedUnitCorners)
	require.NoError(t, err)

	site := siteA01()
	site.Homography = h
	cal, err := New(site)
	require.NoError(t, err)

	for i, p := range src {
		xn, yn, err := cal.PixelToNormalized(p.X, p.Y)
		require.NoError(t, err)
		assert.InDelta(t, SignedUnitCorners[i].X, xn, 1e-6, "corner %d x", i)
		assert.InDelta(t, SignedUnitCorners[i].Y, yn, 1e-6, "corner %d y", i)
	}

	// The corners land on the canonical image corners.
	x, y := cal.NormalizedToCanonicalPixel(SignedUnitCorners[2].X, SignedUnitCorners[2].Y)
	assert.InDelta(t, 1000, x, 1e-9)
	assert.InDelta(t, 1000, y, 1e-9)
}

func TestEstimateHomography_Identity(t *testing.T) {
	h, err := EstimateHomography(UnitSquareCorners, UnitSquareCorners)
	require.NoError(t, err)
	for i := range identity {
		assert.InDelta(t, identity[i], h[i], 1e-9)
	}
}

func TestEstimateHomography_Degenerate(t *testing.T) {
	collinear := [4]parking.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	_, err := EstimateHomography(collinear, UnitSquareCorners)
	assert.ErrorIs(t, err, ErrDegenerateCalibration)
}
