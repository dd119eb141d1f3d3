package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"parkmap-service/internal/config"
	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/vision"
)

type detectorFactory func(cfg *config.Config, log zerolog.Logger) (parking.Detector, func(), error)

type recognizerFactory func(cfg *config.Config) (parking.Recognizer, error)

// Backends needing native libraries register themselves from files built
// with the matching tag.
var (
	detectorFactories = map[string]detectorFactory{
		"sidecar": func(*config.Config, zerolog.Logger) (parking.Detector, func(), error) {
			return vision.SidecarDetector{}, func() {}, nil
		},
	}
	recognizerFactories = map[string]recognizerFactory{
		"sidecar": func(*config.Config) (parking.Recognizer, error) {
			return vision.SidecarRecognizer{}, nil
		},
	}
)

func newDetector(cfg *config.Config, log zerolog.Logger) (parking.Detector, func(), error) {
	f, ok := detectorFactories[cfg.Vision.Detector]
	if !ok {
		return nil, nil, fmt.Errorf("unknown detector %q (available: %s)", cfg.Vision.Detector, keys(detectorFactories))
	}
	return f(cfg, log)
}

func newRecognizer(cfg *config.Config) (parking.Recognizer, error) {
	f, ok := recognizerFactories[cfg.Vision.Recognizer]
	if !ok {
		return nil, fmt.Errorf("unknown recognizer %q (available: %s)", cfg.Vision.Recognizer, keys(recognizerFactories))
	}
	return f(cfg)
}

func keys[V any](m map[string]V) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
