//go:build onnx

package main

import (
	"github.com/rs/zerolog"

	"parkmap-service/internal/config"
	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/vision"
)

func init() {
	detectorFactories["onnx"] = func(cfg *config.Config, log zerolog.Logger) (parking.Detector, func(), error) {
		o := cfg.Vision.ONNX
		opts := vision.YOLOOptions{
			InputSize:      o.InputSize,
			ScoreThreshold: float32(o.ScoreThreshold),
			IoUThreshold:   o.IoUThreshold,
		}
		vehicleOpts := opts
		vehicleOpts.Classes = o.VehicleIDs

		d, err := vision.NewONNXDetector(vision.ONNXConfig{
			LibraryPath:    o.LibraryPath,
			VehicleModel:   o.VehicleModel,
			VehicleClasses: o.VehicleClasses,
			VehicleOpts:    vehicleOpts,
			PlateModel:     o.PlateModel,
			PlateOpts:      opts,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("vehicle_model", o.VehicleModel).Str("plate_model", o.PlateModel).Msg("onnx detector ready")
		return d, d.Close, nil
	}
}
