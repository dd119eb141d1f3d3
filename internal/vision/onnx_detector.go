//go:build onnx

package vision

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"

	"parkmap-service/internal/domain/parking"
)

type yoloSession struct {
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	channels int
	anchors  int
	opts     YOLOOptions
}

func newYOLOSession(modelPath string, classes int, opts YOLOOptions) (*yoloSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())

	size := int64(opts.InputSize)
	anchors := 0
	for _, stride := range []int{8, 16, 32} {
		anchors += (opts.InputSize / stride) * (opts.InputSize / stride)
	}
	channels := 4 + classes

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(channels), int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &yoloSession{
		session:  session,
		input:    input,
		output:   output,
		channels: channels,
		anchors:  anchors,
		opts:     opts,
	}, nil
}

func (s *yoloSession) destroy() {
	s.session.Destroy()
	s.input.Destroy()
	s.output.Destroy()
}

// ONNXDetector runs a vehicle model and a plate model in-process.
type ONNXDetector struct {
	mu      sync.Mutex
	vehicle *yoloSession
	plate   *yoloSession
}

type ONNXConfig struct {
	LibraryPath    string
	VehicleModel   string
	VehicleClasses int
	VehicleOpts    YOLOOptions
	PlateModel     string
	PlateOpts      YOLOOptions
}

func NewONNXDetector(cfg ONNXConfig) (*ONNXDetector, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnx environment: %w", err)
		}
	}

	vehicle, err := newYOLOSession(cfg.VehicleModel, cfg.VehicleClasses, cfg.VehicleOpts)
	if err != nil {
		return nil, fmt.Errorf("vehicle model: %w", err)
	}
	plate, err := newYOLOSession(cfg.PlateModel, 1, cfg.PlateOpts)
	if err != nil {
		vehicle.destroy()
		return nil, fmt.Errorf("plate model: %w", err)
	}
	return &ONNXDetector{vehicle: vehicle, plate: plate}, nil
}

func (d *ONNXDetector) Detect(ctx context.Context, imagePath string) ([]parking.Detection, error) {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	d.mu.Lock()
	defer d.mu.Unlock()

	var out []parking.Detection
	for _, run := range []struct {
		s     *yoloSession
		class parking.DetectionClass
	}{{d.vehicle, parking.ClassVehicle}, {d.plate, parking.ClassPlate}} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		planarInput(img, run.s.opts.InputSize, run.s.input.GetData())
		if err := run.s.session.Run(); err != nil {
			return nil, fmt.Errorf("model inference: %w", err)
		}
		for _, b := range decodeYOLO(run.s.output.GetData(), run.s.channels, run.s.anchors, w, h, run.s.opts) {
			out = append(out, parking.Detection{Box: b.box, Class: run.class})
		}
	}
	return out, nil
}

func (d *ONNXDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vehicle.destroy()
	d.plate.destroy()
	_ = ort.DestroyEnvironment()
}
