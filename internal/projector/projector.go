// Package projector maps matched vehicles from camera pixels onto a site's
// canonical base image and geographic frame.
package projector

import (
	"fmt"

	"parkmap-service/internal/calibration"
	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/utils"
)

// Project returns one unaligned marker per match. A calibration failure on
// any match discards the whole image: the result is nil.
func Project(cal *calibration.Calibration, matches []parking.Match, unknownText string) ([]parking.Marker, error) {
	markers := make([]parking.Marker, 0, len(matches))
	for idx, m := range matches {
		xn, yn, err := cal.PixelToNormalized(m.VehicleCentroid.X, m.VehicleCentroid.Y)
		if err != nil {
			return nil, fmt.Errorf("project vehicle %d: %w", m.VehicleIndex, err)
		}
		x, y := cal.NormalizedToCanonicalPixel(xn, yn)
		ll, err := cal.CanonicalPixelToGeo(x, y)
		if err != nil {
			return nil, fmt.Errorf("project vehicle %d: %w", m.VehicleIndex, err)
		}

		markers = append(markers, parking.Marker{
			SiteID:        cal.SiteID(),
			Index:         idx,
			PlateText:     plateText(m.Text, unknownText),
			X:             x,
			Y:             y,
			Lat:           ll.Lat,
			Lng:           ll.Lng,
			MatchDistance: m.Distance,
		})
	}
	return markers, nil
}

func plateText(text, unknown string) string {
	if text == unknown {
		return text
	}
	if normalized := utils.NormalizePlate(text); normalized != "" {
		return normalized
	}
	return unknown
}
