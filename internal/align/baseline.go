package align

import (
	"math"
	"slices"

	"parkmap-service/internal/domain/parking"
)

const (
	DefaultBaselinePadding = 0.05
	DefaultDepthFraction   = 0.5
)

// Baseline lays points along the region's longest edge, keeping their raw
// relative spread, and pushes them into the slot by a fixed fraction of its
// depth.
type Baseline struct {
	Padding       float64
	DepthFraction float64
}

func (b Baseline) Align(points []parking.Point, polygon [4]parking.Point) []parking.Point {
	out := slices.Clone(points)
	n := len(points)
	if n < 2 {
		return out
	}

	p := OrderPolygon(polygon)
	k := 0
	for i := 1; i < 4; i++ {
		if p[i].DistanceTo(p[(i+1)%4]) > p[k].DistanceTo(p[(k+1)%4]) {
			k = i
		}
	}
	a, end, next := p[k], p[(k+1)%4], p[(k+2)%4]

	axis := end.Sub(a)
	length := axis.Len()
	if length == 0 {
		return out
	}
	dir := axis.Scale(1 / length)

	// Point the normal at the side of the baseline the polygon occupies.
	normal := parking.Point{X: -dir.Y, Y: dir.X}
	if axis.Cross(next.Sub(a)) < 0 {
		normal = normal.Scale(-1)
	}
	depth := math.Abs(next.Sub(end).Dot(normal))
	offset := normal.Scale(clamp(b.DepthFraction, 0, 1) * depth)

	proj := make([]float64, n)
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, pt := range points {
		proj[i] = pt.Sub(a).Dot(dir)
		lo = math.Min(lo, proj[i])
		hi = math.Max(hi, proj[i])
	}
	span := math.Max(hi-lo, 1)
	pad := clamp(b.Padding, 0, 0.5)

	for i := range points {
		t := pad + (1-2*pad)*clamp((proj[i]-lo)/span, 0, 1)
		out[i] = a.Add(dir.Scale(t * length)).Add(offset)
	}
	return out
}
