// Package calibration converts between camera-image pixels, the rectified
// normalized space a site's homography targets, the site's canonical base
// image and geographic coordinates.
package calibration

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"parkmap-service/internal/domain/parking"
)

var (
	ErrDegenerateCalibration = errors.New("degenerate calibration")
	ErrEmptyCalibration      = errors.New("empty calibration")
)

// Calibration is immutable once built and safe to share between goroutines.
type Calibration struct {
	siteID     string
	h          *mat.Dense
	bounds     parking.GeoBounds
	width      float64
	height     float64
	polygon    [4]parking.Point
	convention parking.Convention
}

// New validates a site record and fixes the homogeneous scale of its
// homography to 1.
func New(site parking.Site) (*Calibration, error) {
	scale := site.Homography[8]
	if scale == 0 {
		return nil, fmt.Errorf("%w: site %s: homography scale element is zero", ErrDegenerateCalibration, site.ID)
	}

	h := mat.NewDense(3, 3, nil)
	for i, v := range site.Homography {
		h.Set(i/3, i%3, v/scale)
	}

	b := site.Bounds
	if !(b.LatMin < b.LatMax) || !(b.LngMin < b.LngMax) {
		return nil, fmt.Errorf("%w: site %s: invalid bounds lat [%g, %g] lng [%g, %g]",
			ErrEmptyCalibration, site.ID, b.LatMin, b.LatMax, b.LngMin, b.LngMax)
	}

	convention := site.Convention
	switch convention {
	case "":
		convention = parking.ConventionSignedUnit
	case parking.ConventionSignedUnit, parking.ConventionUnitSquare:
	default:
		return nil, fmt.Errorf("site %s: unknown normalization convention %q", site.ID, convention)
	}

	return &Calibration{
		siteID:     site.ID,
		h:          h,
		bounds:     b,
		width:      float64(site.Width),
		height:     float64(site.Height),
		polygon:    site.Polygon,
		convention: convention,
	}, nil
}

func (c *Calibration) SiteID() string { return c.siteID }

// Polygon returns the parking region boundary in canonical pixels.
func (c *Calibration) Polygon() [4]parking.Point { return c.polygon }

func (c *Calibration) Convention() parking.Convention { return c.convention }

// Homography returns the normalized matrix in row-major order.
func (c *Calibration) Homography() [9]float64 {
	var out [9]float64
	for i := range out {
		out[i] = c.h.At(i/3, i%3)
	}
	return out
}

// PixelToNormalized applies the perspective transform to an image point.
func (c *Calibration) PixelToNormalized(x, y float64) (float64, float64, error) {
	var out mat.VecDense
	out.MulVec(c.h, mat.NewVecDense(3, []float64{x, y, 1}))

	w := out.AtVec(2)
	if w == 0 {
		return 0, 0, fmt.Errorf("%w: site %s: point (%g, %g) maps to infinity",
			ErrDegenerateCalibration, c.siteID, x, y)
	}
	return out.AtVec(0) / w, out.AtVec(1) / w, nil
}

// NormalizedToCanonicalPixel maps normalized coordinates onto the canonical
// base image.
func (c *Calibration) NormalizedToCanonicalPixel(xn, yn float64) (float64, float64) {
	if c.convention == parking.ConventionUnitSquare {
		return xn * c.width, yn * c.height
	}
	return (xn + 1) / 2 * c.width, (1 - yn) / 2 * c.height
}

// CanonicalPixelToGeo interpolates linearly over the site's bounding box.
func (c *Calibration) CanonicalPixelToGeo(x, y float64) (parking.LatLng, error) {
	if c.width == 0 || c.height == 0 {
		return parking.LatLng{}, fmt.Errorf("%w: site %s: canonical size %gx%g",
			ErrEmptyCalibration, c.siteID, c.width, c.height)
	}
	b := c.bounds
	return parking.LatLng{
		Lat: b.LatMax - (y/c.height)*(b.LatMax-b.LatMin),
		Lng: b.LngMin + (x/c.width)*(b.LngMax-b.LngMin),
	}, nil
}

// GeoToCanonicalPixel is the inverse of CanonicalPixelToGeo.
func (c *Calibration) GeoToCanonicalPixel(lat, lng float64) (float64, float64, error) {
	if c.width == 0 || c.height == 0 {
		return 0, 0, fmt.Errorf("%w: site %s: canonical size %gx%g",
			ErrEmptyCalibration, c.siteID, c.width, c.height)
	}
	b := c.bounds
	x := (lng - b.LngMin) / (b.LngMax - b.LngMin) * c.width
	y := (b.LatMax - lat) / (b.LatMax - b.LatMin) * c.height
	return x, y, nil
}

// PolygonFromGeo converts a raw lat/lng boundary into canonical pixels.
func (c *Calibration) PolygonFromGeo(coords [4]parking.LatLng) ([4]parking.Point, error) {
	var out [4]parking.Point
	for i, ll := range coords {
		x, y, err := c.GeoToCanonicalPixel(ll.Lat, ll.Lng)
		if err != nil {
			return out, err
		}
		out[i] = parking.Point{X: x, Y: y}
	}
	return out, nil
}

// BoundsFromGeoPolygon returns the bounding box of a lat/lng boundary.
func BoundsFromGeoPolygon(coords []parking.LatLng) (parking.GeoBounds, error) {
	if len(coords) == 0 {
		return parking.GeoBounds{}, fmt.Errorf("%w: no coordinates", ErrEmptyCalibration)
	}
	b := parking.GeoBounds{
		LatMin: coords[0].Lat, LatMax: coords[0].Lat,
		LngMin: coords[0].Lng, LngMax: coords[0].Lng,
	}
	for _, ll := range coords[1:] {
		b.LatMin = min(b.LatMin, ll.Lat)
		b.LatMax = max(b.LatMax, ll.Lat)
		b.LngMin = min(b.LngMin, ll.Lng)
		b.LngMax = max(b.LngMax, ll.Lng)
	}
	if b.LatMin == b.LatMax || b.LngMin == b.LngMax {
		return b, fmt.Errorf("%w: coordinates span no area", ErrEmptyCalibration)
	}
	return b, nil
}
