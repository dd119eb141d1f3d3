// Package align snaps projected vehicle positions onto the principal axis
// of a parking region so markers stay put between successive photos.
package align

import (
	"fmt"
	"math"
	"slices"

	"parkmap-service/internal/domain/parking"
)

const (
	StrategyCenterline  = "centerline"
	StrategyBaseline    = "baseline"
	StrategyPassthrough = "passthrough"

	DefaultSmoothingFactor = 0.3
	DefaultPadding         = 0.1
)

// PointAligner rearranges points inside a region polygon. Implementations
// never fail: degenerate input comes back unchanged. Output index i always
// corresponds to input index i.
type PointAligner interface {
	Align(points []parking.Point, polygon [4]parking.Point) []parking.Point
}

type Options struct {
	SmoothingFactor float64
	Padding         float64
	// DepthFraction is how far into the slot the baseline strategy pushes
	// points, as a fraction of the slot depth.
	DepthFraction float64
}

// New returns the strategy registered under name; "" selects the centerline
// aligner.
func New(name string, opts Options) (PointAligner, error) {
	switch name {
	case "", StrategyCenterline:
		return Centerline{SmoothingFactor: opts.SmoothingFactor, Padding: opts.Padding}, nil
	case StrategyBaseline:
		b := Baseline{Padding: opts.Padding, DepthFraction: opts.DepthFraction}
		if b.Padding == 0 {
			b.Padding = DefaultBaselinePadding
		}
		if b.DepthFraction == 0 {
			b.DepthFraction = DefaultDepthFraction
		}
		return b, nil
	case StrategyPassthrough:
		return Passthrough{}, nil
	default:
		return nil, fmt.Errorf("unknown aligner %q", name)
	}
}

type Passthrough struct{}

func (Passthrough) Align(points []parking.Point, _ [4]parking.Point) []parking.Point {
	return slices.Clone(points)
}

// OrderPolygon returns the corners in a deterministic cyclic order: by polar
// angle around the centroid (clockwise on screen, y pointing down), starting
// at the corner with the smallest x+y.
func OrderPolygon(polygon [4]parking.Point) [4]parking.Point {
	var c parking.Point
	for _, p := range polygon {
		c = c.Add(p)
	}
	c = c.Scale(0.25)

	pts := polygon
	slices.SortStableFunc(pts[:], func(a, b parking.Point) int {
		aa := math.Atan2(a.Y-c.Y, a.X-c.X)
		ab := math.Atan2(b.Y-c.Y, b.X-c.X)
		switch {
		case aa < ab:
			return -1
		case aa > ab:
			return 1
		}
		return 0
	})

	start := 0
	for i := 1; i < 4; i++ {
		si, ss := pts[i].X+pts[i].Y, pts[start].X+pts[start].Y
		if si < ss || (si == ss && pts[i].X < pts[start].X) {
			start = i
		}
	}

	var out [4]parking.Point
	for i := range out {
		out[i] = pts[(start+i)%4]
	}
	return out
}

func midpoint(a, b parking.Point) parking.Point {
	return a.Add(b).Scale(0.5)
}

// sortedByProjection returns point indices ordered by their scalar
// projection; equal projections keep detection order.
func sortedByProjection(proj []float64) []int {
	order := make([]int, len(proj))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case proj[a] < proj[b]:
			return -1
		case proj[a] > proj[b]:
			return 1
		}
		return 0
	})
	return order
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
