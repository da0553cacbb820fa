// Package inference - The network contract shared by every inference backend.
package inference

import (
	"context"
	"sort"
	"strings"

	"github.com/nvr-ai/go-frcnn/inference/providers"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Blob names used by Faster R-CNN deploy networks.
const (
	// InputData receives the (1, C, H, W) image blob.
	InputData = "data"
	// InputInfo receives (height, width, factor).
	InputInfo = "im_info"
	// OutputDetections is the fused detection table, (N, 6).
	OutputDetections = "rcnn_out"
	// OutputBoxDeltas is the raw per-class box regression, (N, C*4).
	OutputBoxDeltas = "bbox_pred"
	// OutputScores is the raw per-class softmax, (N, C).
	OutputScores = "cls_prob"
	// OutputRoIs is the proposal list, (N, 5).
	OutputRoIs = "rois"
)

// ErrOutputMissing is returned when a network did not produce a requested
// output blob.
var ErrOutputMissing = errors.New("network output missing")

// Outputs maps blob names to the tensors a forward pass produced.
type Outputs map[string]*tensor.Dense

// Get returns the named output.
//
// Arguments:
//   - name: The blob name.
//
// Returns:
//   - *tensor.Dense: The output tensor.
//   - error: ErrOutputMissing if the blob is absent.
func (o Outputs) Get(name string) (*tensor.Dense, error) {
	t, ok := o[name]
	if !ok || t == nil {
		return nil, errors.Wrapf(ErrOutputMissing, "%q (have %s)", name, strings.Join(o.Names(), ", "))
	}
	return t, nil
}

// Names returns the output names in sorted order.
func (o Outputs) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Network is a loaded detection network.
type Network interface {
	// Forward feeds blob to InputData and info to InputInfo, runs the network
	// and returns the outputs it was configured to read.
	Forward(ctx context.Context, blob *tensor.Dense, info preprocess.Info) (Outputs, error)
	// Close releases the network.
	Close() error
}

// Backend names an inference engine.
type Backend string

const (
	// BackendOpenCV runs Caffe (or any OpenCV-readable) networks through the
	// OpenCV DNN module.
	BackendOpenCV Backend = "opencv"
	// BackendONNX runs ONNX networks through ONNX Runtime.
	BackendONNX Backend = "onnx"
)

// Backends is a list of all supported backends.
var Backends = []Backend{BackendOpenCV, BackendONNX}

// ErrUnknownBackend is returned for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown inference backend")

// ParseBackend parses a backend name, defaulting to BackendOpenCV.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	if b == "" {
		return BackendOpenCV, nil
	}
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownBackend, "%q", name)
}

// Args describe the network to load.
type Args struct {
	// Definition is the network definition (Caffe prototxt). Unused by
	// formats that embed it.
	Definition string
	// Weights is the trained model file.
	Weights string
	// Device selects where the network executes.
	Device Device
	// Outputs lists the blobs to read on every forward pass.
	Outputs []string
	// Provider overrides the ONNX Runtime execution provider derived from
	// Device.
	Provider providers.ProviderBackend
	// LibraryPath is the ONNX Runtime shared library, when not the default.
	LibraryPath string
	// Optimization tunes ONNX Runtime sessions.
	Optimization providers.OptimizationConfig
}

// NewTensor wraps data in a float32 tensor of the given shape. data is used
// as the backing store, not copied.
func NewTensor(shape []int, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// NewOutput wraps a blob copied out of an engine. Zero-size blobs have no
// backing data, so they are reported as the rank-1 placeholder [0] that an
// empty detection layer emits.
func NewOutput(shape []int, data []float32) *tensor.Dense {
	if len(data) == 0 {
		return NewTensor([]int{1}, []float32{0})
	}
	return NewTensor(shape, data)
}

// Float32s returns the backing data of a float32 tensor.
func Float32s(t *tensor.Dense) ([]float32, error) {
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected float32 tensor, got %v", t.Dtype())
	}
	return data, nil
}
