package projector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmap-service/internal/calibration"
	"parkmap-service/internal/domain/parking"
)

func newCalibration(t *testing.T, h [9]float64) *calibration.Calibration {
	t.Helper()
	cal, err := calibration.New(parking.Site{
		ID:         "A01",
		Bounds:     parking.GeoBounds{LatMin: 25.0, LatMax: 25.1, LngMin: 121.0, LngMax: 121.1},
		Width:      1000,
		Height:     1000,
		Homography: h,
	})
	require.NoError(t, err)
	return cal
}

func TestProject(t *testing.T) {
	// Image pixel (x, y) → normalized (x/100 - 1, 1 - y/100).
	cal := newCalibration(t, [9]float64{0.01, 0, -1, 0, -0.01, 1, 0, 0, 1})

	matches := []parking.Match{
		{VehicleIndex: 0, Text: "abc-123", Distance: 3, VehicleCentroid: parking.Point{X: 100, Y: 100}},
		{VehicleIndex: 2, Text: "unknown", Distance: 7, VehicleCentroid: parking.Point{X: 0, Y: 200}},
	}

	markers, err := Project(cal, matches, "unknown")
	require.NoError(t, err)
	require.Len(t, markers, 2)

	assert.Equal(t, 0, markers[0].Index)
	assert.Equal(t, "A01", markers[0].SiteID)
	assert.Equal(t, "ABC123", markers[0].PlateText)
	assert.InDelta(t, 500, markers[0].X, 1e-9)
	assert.InDelta(t, 500, markers[0].Y, 1e-9)
	assert.InDelta(t, 25.05, markers[0].Lat, 1e-12)
	assert.InDelta(t, 121.05, markers[0].Lng, 1e-12)
	assert.Equal(t, 3.0, markers[0].MatchDistance)

	assert.Equal(t, 1, markers[1].Index)
	assert.Equal(t, "unknown", markers[1].PlateText)
	assert.InDelta(t, 0, markers[1].X, 1e-9)
	assert.InDelta(t, 1000, markers[1].Y, 1e-9)
}

func TestProject_DegenerateDiscardsAll(t *testing.T) {
	// w = x/10 + 1 vanishes at x = -10.
	cal := newCalibration(t, [9]float64{1, 0, 0, 0, 1, 0, 0.1, 0, 1})

	matches := []parking.Match{
		{VehicleCentroid: parking.Point{X: 5, Y: 5}},
		{VehicleIndex: 1, VehicleCentroid: parking.Point{X: -10, Y: 5}},
	}

	markers, err := Project(cal, matches, "unknown")
	assert.ErrorIs(t, err, calibration.ErrDegenerateCalibration)
	assert.Nil(t, markers)
}

func TestProject_EmptyCanvas(t *testing.T) {
	cal, err := calibration.New(parking.Site{
		ID:         "B02",
		Bounds:     parking.GeoBounds{LatMin: 1, LatMax: 2, LngMin: 1, LngMax: 2},
		Homography: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	})
	require.NoError(t, err)

	_, err = Project(cal, []parking.Match{{VehicleCentroid: parking.Point{X: 1, Y: 1}}}, "unknown")
	assert.ErrorIs(t, err, calibration.ErrEmptyCalibration)
}

func TestProject_NoMatches(t *testing.T) {
	cal := newCalibration(t, [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	markers, err := Project(cal, nil, "unknown")
	require.NoError(t, err)
	assert.Empty(t, markers)
}
