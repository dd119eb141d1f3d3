//go:build tesseract

package main

import (
	"parkmap-service/internal/config"
	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/vision"
)

func init() {
	recognizerFactories["tesseract"] = func(cfg *config.Config) (parking.Recognizer, error) {
		return vision.TesseractRecognizer{Language: cfg.Vision.OCRLanguage}, nil
	}
}
