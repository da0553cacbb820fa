// Package detector - Runs a Faster R-CNN network on BGR images and plots what
// it finds.
package detector

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/inference/engine"
	"github.com/nvr-ai/go-frcnn/models"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/nvr-ai/go-frcnn/profiler"
	"github.com/nvr-ai/go-frcnn/visualize"
	"github.com/pkg/errors"
)

// Coordinates names the pixel space a network writes its boxes in.
type Coordinates string

const (
	// CoordinatesOriginal means boxes are already in original-image pixels.
	CoordinatesOriginal Coordinates = "original"
	// CoordinatesResized means boxes are in the resized input's pixels and
	// must be divided by the preprocessing factor.
	CoordinatesResized Coordinates = "resized"
)

// ParseCoordinates parses a coordinate space name. Empty means original.
func ParseCoordinates(name string) (Coordinates, error) {
	switch c := Coordinates(strings.ToLower(strings.TrimSpace(name))); c {
	case "":
		return CoordinatesOriginal, nil
	case CoordinatesOriginal, CoordinatesResized:
		return c, nil
	default:
		return "", errors.Errorf("unknown coordinate space %q (want original or resized)", name)
	}
}

// Options configure a Detector.
type Options struct {
	// Dataset selects the class table.
	Dataset models.Dataset
	// Preprocess is the input pipeline.
	Preprocess preprocess.Config
	// Coordinates is the space the network writes boxes in.
	Coordinates Coordinates
	// Threshold is the minimum score Demo plots.
	Threshold float32
	// LineWidth is the box outline width used by Demo.
	LineWidth float64
	// Palette overrides the class colors.
	Palette visualize.Palette
	// Profiler, when set, records preprocess, forward and plot timings.
	Profiler *profiler.RuntimeProfiler
	// Output receives the demo report lines. Defaults to stdout.
	Output io.Writer
}

// DefaultOptions returns the COCO detector with the standard preprocessing.
func DefaultOptions() Options {
	return Options{
		Dataset:     models.DefaultDataset,
		Preprocess:  preprocess.DefaultConfig(),
		Coordinates: CoordinatesOriginal,
		LineWidth:   visualize.DefaultLineWidth,
		Output:      os.Stdout,
	}
}

// Detector wraps a loaded network with its preprocessing and class table.
type Detector struct {
	net     inference.Network
	device  inference.Device
	classes *models.OutputClassSet
	plotter *visualize.Plotter
	opts    Options
	log     logs.Log
}

// New wraps an already loaded network.
//
// Arguments:
//   - net: The network.
//   - device: Where net executes.
//   - opts: Detector options.
//   - log: The logger.
//
// Returns:
//   - *Detector: The detector. It owns net.
//   - error: If the options are invalid.
func New(net inference.Network, device inference.Device, opts Options, log logs.Log) (*Detector, error) {
	if err := opts.Preprocess.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid preprocessing")
	}
	dataset, err := models.ParseDataset(string(opts.Dataset))
	if err != nil {
		return nil, err
	}
	classes, err := models.Classes(dataset)
	if err != nil {
		return nil, err
	}
	if opts.Coordinates, err = ParseCoordinates(string(opts.Coordinates)); err != nil {
		return nil, err
	}
	plotter, err := visualize.NewPlotter(classes, opts.Palette)
	if err != nil {
		return nil, err
	}
	if opts.LineWidth > 0 {
		plotter.LineWidth = opts.LineWidth
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	opts.Dataset = dataset

	return &Detector{
		net:     net,
		device:  device,
		classes: classes,
		plotter: plotter,
		opts:    opts,
		log:     log,
	}, nil
}

// Open builds the network described by b and wraps it.
//
// Arguments:
//   - ctx: Passed to the network loader.
//   - b: The configured network builder.
//   - opts: Detector options.
//   - log: The logger.
//
// Returns:
//   - *Detector: The detector.
//   - error: If the network cannot be loaded or the options are invalid.
//
// @example
// b := engine.NewBuilder(log).WithModel(prototxt, caffemodel).WithDevice(inference.DeviceFromSelector(gpu))
// det, err := detector.Open(ctx, b, detector.DefaultOptions(), log)
func Open(ctx context.Context, b *engine.Builder, opts Options, log logs.Log) (*Detector, error) {
	net, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	args := b.Args()
	d, err := New(net, args.Device, opts, log)
	if err != nil {
		net.Close()
		return nil, err
	}
	log.Infof("[Detector] Loaded network %s", args.Weights)
	return d, nil
}

// Device returns where the network executes.
func (d *Detector) Device() inference.Device {
	return d.device
}

// Classes returns the active class table.
func (d *Detector) Classes() *models.OutputClassSet {
	return d.classes
}

// Detect runs the network on one BGR image.
//
// Arguments:
//   - ctx: Cancels the forward pass.
//   - img: The image.
//
// Returns:
//   - Table: Detections in img's pixel coordinates, in network order. When the
//     network output is not rank 2 the table is empty.
//   - error: If preprocessing, the forward pass or table validation fails.
func (d *Detector) Detect(ctx context.Context, img *images.Raster) (Table, error) {
	done := d.operation("preprocess")
	res, err := preprocess.Run(img, d.opts.Preprocess)
	done()
	if err != nil {
		return nil, err
	}

	done = d.operation("forward")
	out, err := d.net.Forward(ctx, res.Blob(), res.Info)
	done()
	if err != nil {
		return nil, errors.Wrap(err, "forward pass failed")
	}

	dets, err := out.Get(inference.OutputDetections)
	if err != nil {
		return nil, err
	}
	table, err := TableFromTensor(dets, d.classes)
	if err != nil {
		return nil, err
	}
	if d.opts.Coordinates == CoordinatesResized && len(table) > 0 {
		table = table.Scale(float32(1 / res.Factor))
	}
	return table, nil
}

// Plot draws the detections scoring at least threshold over img. A lineWidth
// <= 0 uses Options.LineWidth.
func (d *Detector) Plot(img *images.Raster, dets Table, threshold float32, canvas *visualize.Canvas, lineWidth float64) (*visualize.Canvas, error) {
	defer d.operation("plot")()
	return d.plotter.Plot(img, dets, threshold, canvas, lineWidth)
}

// Demo loads an image, times Detect on it, reports the time and number of
// detections and plots them.
//
// Arguments:
//   - ctx: Cancels the forward pass.
//   - path: The image file.
//
// Returns:
//   - *visualize.Canvas: The annotated image.
//   - Table: The detections.
//   - error: If the image cannot be read or detection fails.
func (d *Detector) Demo(ctx context.Context, path string) (*visualize.Canvas, Table, error) {
	img, err := images.Load(path)
	if err != nil {
		return nil, nil, err
	}

	timer := profiler.NewTimer()
	timer.Tic()
	dets, err := d.Detect(ctx, img)
	timer.Toc()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "detection failed for %s", path)
	}
	fmt.Fprintf(d.opts.Output, "Detection took %.3fs for %d objects\n", timer.TotalTime.Seconds(), len(dets))

	canvas, err := d.Plot(img, dets, d.opts.Threshold, nil, 0)
	if err != nil {
		return nil, nil, err
	}
	return canvas, dets, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}

func (d *Detector) operation(name string) func() {
	if d.opts.Profiler == nil {
		return func() {}
	}
	return d.opts.Profiler.StartOperation(name)
}
