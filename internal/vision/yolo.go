package vision

import (
	"image"
	"slices"

	"github.com/disintegration/imaging"

	"parkmap-service/internal/domain/parking"
)

// YOLOOptions controls decoding of a YOLOv8 output tensor laid out as
// [1, 4+classes, anchors] with boxes in (cx, cy, w, h) input pixels.
type YOLOOptions struct {
	InputSize      int
	ScoreThreshold float32
	IoUThreshold   float64
	// Classes restricts accepted class ids. Empty accepts all.
	Classes []int
}

func DefaultYOLOOptions() YOLOOptions {
	return YOLOOptions{InputSize: 640, ScoreThreshold: 0.25, IoUThreshold: 0.45}
}

type scoredBox struct {
	box   parking.Box
	score float32
	class int
}

// decodeYOLO converts raw predictions into boxes in original image pixels.
func decodeYOLO(out []float32, channels, anchors, origW, origH int, opts YOLOOptions) []scoredBox {
	if channels < 5 || len(out) < channels*anchors {
		return nil
	}
	sx := float64(origW) / float64(opts.InputSize)
	sy := float64(origH) / float64(opts.InputSize)

	var boxes []scoredBox
	for i := 0; i < anchors; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 4; c < channels; c++ {
			if s := out[c*anchors+i]; s > bestScore {
				bestClass, bestScore = c-4, s
			}
		}
		if bestClass < 0 || bestScore < opts.ScoreThreshold {
			continue
		}
		if len(opts.Classes) > 0 && !slices.Contains(opts.Classes, bestClass) {
			continue
		}

		cx, cy := float64(out[i]), float64(out[anchors+i])
		w, h := float64(out[2*anchors+i]), float64(out[3*anchors+i])
		boxes = append(boxes, scoredBox{
			box: parking.Box{
				XMin: (cx - w/2) * sx,
				YMin: (cy - h/2) * sy,
				XMax: (cx + w/2) * sx,
				YMax: (cy + h/2) * sy,
			},
			score: bestScore,
			class: bestClass,
		})
	}
	return nonMaxSuppression(boxes, opts.IoUThreshold)
}

// nonMaxSuppression keeps the highest scoring box of every overlapping
// cluster, per class.
func nonMaxSuppression(boxes []scoredBox, iouThreshold float64) []scoredBox {
	slices.SortStableFunc(boxes, func(a, b scoredBox) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	var kept []scoredBox
	for _, b := range boxes {
		suppressed := false
		for _, k := range kept {
			if k.class == b.class && iou(k.box, b.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

func iou(a, b parking.Box) float64 {
	ix := min(a.XMax, b.XMax) - max(a.XMin, b.XMin)
	iy := min(a.YMax, b.YMax) - max(a.YMin, b.YMin)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b parking.Box) float64 {
	return (b.XMax - b.XMin) * (b.YMax - b.YMin)
}

// planarInput resizes img to size×size and writes it as CHW floats in [0,1].
func planarInput(img image.Image, size int, dst []float32) {
	resized := imaging.Resize(img, size, size, imaging.Linear)
	channel := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*size + x
			p := resized.Pix[y*resized.Stride+x*4:]
			dst[i] = float32(p[0]) / 255.0
			dst[channel+i] = float32(p[1]) / 255.0
			dst[2*channel+i] = float32(p[2]) / 255.0
		}
	}
}
