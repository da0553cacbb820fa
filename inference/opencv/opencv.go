// Package opencv runs detection networks through the OpenCV DNN module.
package opencv

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// Network is an inference.Network backed by gocv.Net.
type Network struct {
	mu      sync.Mutex
	net     gocv.Net
	outputs []string
	device  inference.Device
	closed  bool
}

// Open loads a network. Caffe models (.caffemodel) are read with their
// prototxt definition; anything else goes through gocv.ReadNet, which picks
// the importer by extension.
//
// The OpenCV backend and target are set on this net only: CUDA for a GPU
// device, the OpenCV CPU path otherwise.
//
// Arguments:
//   - args: The definition, weights, device and outputs to read.
//   - log: The logger.
//
// Returns:
//   - *Network: The loaded network.
//   - error: If a file is missing or OpenCV cannot parse the model.
func Open(args inference.Args, log logs.Log) (*Network, error) {
	if err := checkFile(args.Weights); err != nil {
		return nil, err
	}

	var net gocv.Net
	if strings.EqualFold(filepath.Ext(args.Weights), ".caffemodel") {
		if err := checkFile(args.Definition); err != nil {
			return nil, err
		}
		net = gocv.ReadNetFromCaffe(args.Definition, args.Weights)
	} else {
		net = gocv.ReadNet(args.Weights, args.Definition)
	}
	if net.Empty() {
		return nil, errors.Errorf("failed to load network %s (model may be incompatible with OpenCV DNN)", args.Weights)
	}

	if args.Device.IsGPU() && args.Device.ID != 0 {
		log.Warnf("OpenCV DNN runs on the current CUDA device; index %d is not selected per net", args.Device.ID)
	}
	if err := setPreferable(&net, args.Device); err != nil {
		net.Close()
		return nil, errors.Wrapf(err, "cannot run %s on %s", filepath.Base(args.Weights), args.Device)
	}

	outputs := args.Outputs
	if len(outputs) == 0 {
		outputs = []string{inference.OutputDetections}
	}

	log.Debugf("OpenCV network %s on %s, outputs %v", filepath.Base(args.Weights), args.Device, outputs)

	return &Network{
		net:     net,
		outputs: outputs,
		device:  args.Device,
	}, nil
}

// Device returns the device the net was configured for.
func (n *Network) Device() inference.Device {
	return n.device
}

// preferable is the part of gocv.Net that selects where layers execute.
type preferable interface {
	SetPreferableBackend(backend gocv.NetBackendType) error
	SetPreferableTarget(target gocv.NetTargetType) error
}

// setPreferable selects CUDA for a GPU device and the OpenCV CPU path
// otherwise. OpenCV builds without CUDA reject the CUDA backend.
func setPreferable(net preferable, device inference.Device) error {
	backend, target := gocv.NetBackendOpenCV, gocv.NetTargetCPU
	if device.IsGPU() {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		return errors.Wrap(err, "failed to set backend")
	}
	if err := net.SetPreferableTarget(target); err != nil {
		return errors.Wrap(err, "failed to set target")
	}
	return nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "model file %q", path)
	}
	if info.Size() == 0 {
		return errors.Errorf("model file %q is empty", path)
	}
	return nil
}

type forwardResult struct {
	out inference.Outputs
	err error
}

// Forward implements inference.Network. The forward pass itself cannot be
// interrupted; when ctx ends first Forward returns ctx.Err() and the pass
// finishes in the background while holding the net.
func (n *Network) Forward(ctx context.Context, blob *tensor.Dense, info preprocess.Info) (inference.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan forwardResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- forwardResult{err: errors.Errorf("panic during forward pass: %v", r)}
			}
		}()
		out, err := n.forward(blob, info)
		done <- forwardResult{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Network) forward(blob *tensor.Dense, info preprocess.Info) (inference.Outputs, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, errors.New("network is closed")
	}

	data, err := inference.Float32s(blob)
	if err != nil {
		return nil, err
	}
	input, err := toMat(blob.Shape(), data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build input blob")
	}
	defer input.Close()

	imInfo, err := toMat([]int{1, 3}, info.Slice())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build im_info blob")
	}
	defer imInfo.Close()

	n.net.SetInput(input, inference.InputData)
	n.net.SetInput(imInfo, inference.InputInfo)

	blobs := n.net.ForwardLayers(n.outputs)
	defer func() {
		for i := range blobs {
			blobs[i].Close()
		}
	}()
	if len(blobs) != len(n.outputs) {
		return nil, errors.Errorf("forward returned %d blobs for %d outputs", len(blobs), len(n.outputs))
	}

	out := make(inference.Outputs, len(blobs))
	for i, name := range n.outputs {
		t, err := fromMat(blobs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "output %q", name)
		}
		out[name] = t
	}
	return out, nil
}

// Close implements inference.Network.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true
	return n.net.Close()
}

// toMat copies data into a new float32 Mat with the given dimensions.
func toMat(shape []int, data []float32) (gocv.Mat, error) {
	m := gocv.NewMatWithSizes(shape, gocv.MatTypeCV32F)
	dst, err := m.DataPtrFloat32()
	if err != nil {
		m.Close()
		return gocv.Mat{}, err
	}
	if len(dst) != len(data) {
		m.Close()
		return gocv.Mat{}, errors.Errorf("blob of shape %v holds %d values, got %d", shape, len(dst), len(data))
	}
	copy(dst, data)
	return m, nil
}

// fromMat copies a float32 Mat into a tensor with the Mat's dimensions.
// OpenCV has no rank-1 Mat, so a single-element blob is reported with shape
// (1); that is the placeholder an empty detection layer emits.
func fromMat(m gocv.Mat) (*tensor.Dense, error) {
	if m.Empty() {
		return nil, errors.New("empty output blob")
	}
	if m.Type() != gocv.MatTypeCV32F {
		return nil, errors.Errorf("expected CV_32F output, got type %v", m.Type())
	}
	src, err := m.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	data := append([]float32(nil), src...)

	shape := m.Size()
	if len(data) == 1 {
		shape = []int{1}
	}
	return inference.NewOutput(shape, data), nil
}
