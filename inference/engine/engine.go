// Package engine - Builds an inference.Network from a backend name and model
// files.
package engine

import (
	"context"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/inference/onnx"
	"github.com/nvr-ai/go-frcnn/inference/opencv"
	"github.com/nvr-ai/go-frcnn/inference/providers"
	"github.com/nvr-ai/go-frcnn/models/postprocess"
	"github.com/pkg/errors"
)

// Open loads a network with the named backend.
//
// This factory function is the single place that knows about concrete
// backends, so callers only deal with inference.Network.
//
// Arguments:
//   - ctx: Checked before loading starts.
//   - backend: The inference engine.
//   - args: Model files, device and outputs.
//   - log: The logger.
//
// Returns:
//   - inference.Network: The loaded network.
//   - error: If the backend is unknown or loading fails.
func Open(ctx context.Context, backend inference.Backend, args inference.Args, log logs.Log) (inference.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		net inference.Network
		err error
	)
	switch backend {
	case inference.BackendOpenCV:
		net, err = opencv.Open(args, log)
	case inference.BackendONNX:
		net, err = onnx.Open(args, log)
	default:
		return nil, errors.Wrapf(inference.ErrUnknownBackend, "%q", backend)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s network", backend)
	}
	return net, nil
}

// Opener matches Open. Builder uses it so tests can swap in fakes.
type Opener func(ctx context.Context, backend inference.Backend, args inference.Args, log logs.Log) (inference.Network, error)

// Builder assembles a network with a fluent API.
type Builder struct {
	backend inference.Backend
	args    inference.Args
	head    inference.HeadMode
	rcnn    postprocess.RCNNConfig
	open    Opener
	log     logs.Log
	err     error
}

// NewBuilder creates a builder for the OpenCV backend on CPU with the fused
// head.
//
// Arguments:
//   - log: The logger handed to the backend.
//
// Returns:
//   - *Builder: The builder.
//
// @example
// b := engine.NewBuilder(log).WithBackend("onnx").WithModel("", "models/frcnn.onnx")
// net, err := b.WithDevice(inference.DeviceFromSelector(0)).Build(ctx)
func NewBuilder(log logs.Log) *Builder {
	return &Builder{
		backend: inference.BackendOpenCV,
		args: inference.Args{
			Device:       inference.CPU,
			Optimization: providers.DefaultOptimizationConfig(),
		},
		head: inference.HeadFused,
		rcnn: postprocess.DefaultRCNNConfig(),
		open: Open,
		log:  log,
	}
}

// WithBackend sets the inference engine by name.
func (b *Builder) WithBackend(name string) *Builder {
	if b.HasError() {
		return b
	}
	b.backend, b.err = inference.ParseBackend(name)
	return b
}

// WithModel sets the network definition and weights.
func (b *Builder) WithModel(definition, weights string) *Builder {
	if b.HasError() {
		return b
	}
	if weights == "" {
		b.err = errors.New("weights path is required")
		return b
	}
	b.args.Definition = definition
	b.args.Weights = weights
	return b
}

// WithDevice sets where the network executes.
func (b *Builder) WithDevice(device inference.Device) *Builder {
	if b.HasError() {
		return b
	}
	b.args.Device = device
	return b
}

// WithProvider overrides the ONNX Runtime execution provider by name. The
// empty string keeps the provider derived from the device.
func (b *Builder) WithProvider(name string) *Builder {
	if b.HasError() {
		return b
	}
	b.args.Provider, b.err = providers.ParseBackend(name)
	return b
}

// WithLibraryPath sets the ONNX Runtime shared library.
func (b *Builder) WithLibraryPath(path string) *Builder {
	if b.HasError() {
		return b
	}
	b.args.LibraryPath = path
	return b
}

// WithOptimization sets ONNX Runtime session tuning.
func (b *Builder) WithOptimization(cfg providers.OptimizationConfig) *Builder {
	if b.HasError() {
		return b
	}
	b.args.Optimization = cfg
	return b
}

// WithHead selects the head mode by name and the thresholds used when
// decoding a raw head.
func (b *Builder) WithHead(name string, cfg postprocess.RCNNConfig) *Builder {
	if b.HasError() {
		return b
	}
	b.head, b.err = inference.ParseHeadMode(name)
	b.rcnn = cfg
	return b
}

// WithOpener replaces the backend factory.
func (b *Builder) WithOpener(open Opener) *Builder {
	if b.HasError() {
		return b
	}
	b.open = open
	return b
}

// HasError checks if the builder has errors.
func (b *Builder) HasError() bool {
	return b.err != nil
}

// Args returns the arguments the backend will receive.
func (b *Builder) Args() inference.Args {
	args := b.args
	args.Outputs = b.head.Outputs()
	return args
}

// Build loads the network.
//
// Returns:
//   - inference.Network: The network, wrapped with Go-side decoding for the
//     raw head.
//   - error: The first builder error, or the backend's.
func (b *Builder) Build(ctx context.Context) (inference.Network, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.args.Weights == "" {
		return nil, errors.New("model not configured")
	}

	net, err := b.open(ctx, b.backend, b.Args(), b.log)
	if err != nil {
		return nil, err
	}
	if b.head == inference.HeadRaw {
		return inference.NewRawHead(net, b.rcnn), nil
	}
	return net, nil
}
