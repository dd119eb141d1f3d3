// Package vision adapts detectors, text recognizers and the site
// classifier to the pipeline's collaborator interfaces.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"parkmap-service/internal/domain/parking"
)

const (
	DetectionsSuffix = ".detections.json"
	OCRSuffix        = ".ocr.json"
)

var ErrNoDetections = errors.New("detections file missing")

// detectionsFile is the detector output written next to an image:
// corner boxes per class as [x1, y1, x2, y2].
type detectionsFile struct {
	Vehicles [][4]float64 `json:"vehicles"`
	Plates   [][4]float64 `json:"plates"`
}

type ocrEntry struct {
	Text   string     `json:"text"`
	Conf   float64    `json:"conf"`
	Center [2]float64 `json:"center"`
}

// SidecarDetector reads boxes produced by an external detector from
// "<image>.detections.json".
type SidecarDetector struct{}

func (SidecarDetector) Detect(ctx context.Context, imagePath string) ([]parking.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(imagePath + DetectionsSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDetections, imagePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}

	var f detectionsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode detections: %w", err)
	}

	out := make([]parking.Detection, 0, len(f.Vehicles)+len(f.Plates))
	for _, b := range f.Vehicles {
		out = append(out, parking.Detection{Box: cornerBox(b), Class: parking.ClassVehicle})
	}
	for _, b := range f.Plates {
		out = append(out, parking.Detection{Box: cornerBox(b), Class: parking.ClassPlate})
	}
	return out, nil
}

// SidecarRecognizer reads "<image>.ocr.json", a list of {text, conf,
// center}. A missing file means nothing was recognized.
type SidecarRecognizer struct{}

func (SidecarRecognizer) Recognize(ctx context.Context, imagePath string) ([]parking.TextRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(imagePath + OCRSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ocr output: %w", err)
	}

	var entries []ocrEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ocr output: %w", err)
	}

	out := make([]parking.TextRegion, 0, len(entries))
	for _, e := range entries {
		out = append(out, parking.TextRegion{
			Text:       e.Text,
			Confidence: e.Conf,
			Center:     parking.Point{X: e.Center[0], Y: e.Center[1]},
		})
	}
	return out, nil
}

func cornerBox(b [4]float64) parking.Box {
	return parking.Box{
		XMin: min(b[0], b[2]),
		YMin: min(b[1], b[3]),
		XMax: max(b[0], b[2]),
		YMax: max(b[1], b[3]),
	}
}
