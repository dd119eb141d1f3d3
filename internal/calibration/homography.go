package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"parkmap-service/internal/domain/parking"
)

// UnitSquareCorners is the target of a four-point calibration in the
// unit-square convention, clockwise from the top-left corner.
var UnitSquareCorners = [4]parking.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

// SignedUnitCorners is the same target in the signed-unit convention.
var SignedUnitCorners = [4]parking.Point{{X: -1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1}}

// EstimateHomography solves for the homography mapping src[i] onto dst[i]
// with h33 fixed to 1. The result is row-major.
func EstimateHomography(src, dst [4]parking.Point) ([9]float64, error) {
	if hasCollinearTriple(src) || hasCollinearTriple(dst) {
		return [9]float64{}, fmt.Errorf("%w: reference points are collinear or repeated", ErrDegenerateCalibration)
	}

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range src {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return [9]float64{}, fmt.Errorf("%w: %v", ErrDegenerateCalibration, err)
	}

	var out [9]float64
	for i := 0; i < 8; i++ {
		out[i] = h.AtVec(i)
	}
	out[8] = 1
	return out, nil
}

func hasCollinearTriple(pts [4]parking.Point) bool {
	for i := 0; i < 4; i++ {
		a, b, c := pts[i], pts[(i+1)%4], pts[(i+2)%4]
		ab, ac := b.Sub(a), c.Sub(a)
		if math.Abs(ab.Cross(ac)) <= 1e-12*max(ab.Len()*ac.Len(), 1e-300) {
			return true
		}
	}
	return false
}
