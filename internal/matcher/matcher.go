// Package matcher pairs vehicle detections with plate detections from one
// image and attaches the nearest confident text recognition to each pair.
package matcher

import (
	"parkmap-service/internal/domain/parking"
)

const (
	DefaultMaxPairDistance   = 1000.0
	DefaultMinTextConfidence = 0.7
	DefaultUnknownText       = "unknown"
)

type Config struct {
	// MaxPairDistance rejects assigned vehicle/plate pairs further apart
	// than this many image pixels.
	MaxPairDistance float64
	// MinTextConfidence is exclusive: text must score strictly above it.
	MinTextConfidence float64
	UnknownText       string
}

func DefaultConfig() Config {
	return Config{
		MaxPairDistance:   DefaultMaxPairDistance,
		MinTextConfidence: DefaultMinTextConfidence,
		UnknownText:       DefaultUnknownText,
	}
}

type Matcher struct {
	cfg Config
}

func New(cfg Config) *Matcher {
	if cfg.MaxPairDistance <= 0 {
		cfg.MaxPairDistance = DefaultMaxPairDistance
	}
	if cfg.UnknownText == "" {
		cfg.UnknownText = DefaultUnknownText
	}
	return &Matcher{cfg: cfg}
}

func (m *Matcher) Config() Config { return m.cfg }

// Match returns the retained vehicle/plate pairs ordered by vehicle index.
// An empty result means there is nothing to persist for this image.
func (m *Matcher) Match(vehicles, plates []parking.Detection, texts []parking.TextRegion) []parking.Match {
	if len(vehicles) == 0 || len(plates) == 0 {
		return nil
	}

	vc := centroids(vehicles)
	pc := centroids(plates)

	cost := make([][]float64, len(vc))
	for i := range vc {
		cost[i] = make([]float64, len(pc))
		for j := range pc {
			cost[i][j] = vc[i].DistanceTo(pc[j])
		}
	}

	var matches []parking.Match
	for i, j := range Assign(cost) {
		if j < 0 || cost[i][j] > m.cfg.MaxPairDistance {
			continue
		}
		text, textIdx := m.nearestText(vc[i], texts)
		matches = append(matches, parking.Match{
			VehicleIndex:    i,
			PlateIndex:      j,
			Text:            text,
			TextIndex:       textIdx,
			Distance:        cost[i][j],
			VehicleCentroid: vc[i],
		})
	}
	return matches
}

// nearestText picks the closest region above the confidence floor. Equal
// distances keep the lower index.
func (m *Matcher) nearestText(center parking.Point, texts []parking.TextRegion) (string, int) {
	best := -1
	bestDist := 0.0
	for k, t := range texts {
		if t.Confidence <= m.cfg.MinTextConfidence {
			continue
		}
		d := center.DistanceTo(t.Center)
		if best < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if best < 0 {
		return m.cfg.UnknownText, -1
	}
	return texts[best].Text, best
}

// SplitDetections applies the class filter the detector leaves to callers.
func SplitDetections(dets []parking.Detection) (vehicles, plates []parking.Detection) {
	for _, d := range dets {
		switch d.Class {
		case parking.ClassVehicle:
			vehicles = append(vehicles, d)
		case parking.ClassPlate:
			plates = append(plates, d)
		}
	}
	return vehicles, plates
}

func centroids(dets []parking.Detection) []parking.Point {
	out := make([]parking.Point, len(dets))
	for i, d := range dets {
		out[i] = d.Box.Centroid()
	}
	return out
}
