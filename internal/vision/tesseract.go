//go:build tesseract

package vision

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"parkmap-service/internal/domain/parking"
)

const plateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

// TesseractRecognizer runs word-level OCR over the whole image.
type TesseractRecognizer struct {
	Language string
}

func (r TesseractRecognizer) Recognize(ctx context.Context, imagePath string) ([]parking.TextRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if r.Language != "" {
		if err := client.SetLanguage(r.Language); err != nil {
			return nil, fmt.Errorf("failed to set language: %w", err)
		}
	}
	if err := client.SetWhitelist(plateAlphabet); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	regions := make([]parking.TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		regions = append(regions, parking.TextRegion{
			Text:       box.Word,
			Confidence: box.Confidence / 100.0,
			Center: parking.Point{
				X: float64(box.Box.Min.X+box.Box.Max.X) / 2,
				Y: float64(box.Box.Min.Y+box.Box.Max.Y) / 2,
			},
		})
	}
	return regions, nil
}
