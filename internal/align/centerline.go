package align

import (
	"slices"

	"parkmap-service/internal/domain/parking"
)

// Centerline spreads points along the axis joining the midpoints of the
// region's two short edges.
//
// SmoothingFactor mixes raw relative offsets into a uniform spacing: 0 gives
// evenly spaced markers regardless of where the detector put them, 1 keeps
// the raw spread. Padding keeps markers off the region's ends.
type Centerline struct {
	SmoothingFactor float64
	Padding         float64
}

func DefaultCenterline() Centerline {
	return Centerline{SmoothingFactor: DefaultSmoothingFactor, Padding: DefaultPadding}
}

func (c Centerline) Align(points []parking.Point, polygon [4]parking.Point) []parking.Point {
	out := slices.Clone(points)
	n := len(points)
	if n < 2 {
		return out
	}

	start, end := CenterlineOf(polygon)
	axis := end.Sub(start)
	length := axis.Len()
	if length == 0 {
		return out
	}
	dir := axis.Scale(1 / length)

	proj := make([]float64, n)
	for i, p := range points {
		proj[i] = p.Sub(start).Dot(dir)
	}
	order := sortedByProjection(proj)
	lo, hi := proj[order[0]], proj[order[n-1]]

	f := clamp(c.SmoothingFactor, 0, 1)
	pad := clamp(c.Padding, 0, 0.5)

	for k, idx := range order {
		uniform := float64(k) / float64(n-1)
		normalized := uniform
		if hi > lo {
			normalized = (proj[idx] - lo) / (hi - lo)
		}
		mixed := (1-f)*uniform + f*normalized
		// Padding shifts every point forward and the upper clamp absorbs
		// the overshoot, so with ten or more points the tail shares 1-pad.
		t := clamp(pad+(1-pad)*mixed, pad, 1-pad)
		out[idx] = start.Add(dir.Scale(t * length))
	}
	return out
}

// CenterlineOf returns the region's long axis. The short-edge pair is the
// opposite pair with the smaller summed length; the axis starts at the
// midpoint with the smaller x (then y).
func CenterlineOf(polygon [4]parking.Point) (parking.Point, parking.Point) {
	p := OrderPolygon(polygon)

	var edge [4]float64
	for i := range edge {
		edge[i] = p[i].DistanceTo(p[(i+1)%4])
	}

	k := 0
	if edge[1]+edge[3] < edge[0]+edge[2] {
		k = 1
	}
	a := midpoint(p[k], p[k+1])
	b := midpoint(p[k+2], p[(k+3)%4])

	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	return a, b
}
