// Package onnx runs detection networks through ONNX Runtime.
package onnx

import (
	"context"
	"os"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/inference/providers"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var (
	envMu    sync.Mutex
	envReady bool
)

// initEnvironment loads the native library and prepares the runtime. Once it
// succeeds later calls do nothing; a failed attempt is retried on the next
// call, which may name a different library.
func initEnvironment(libPath string, log logs.Log) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envReady || ort.IsInitialized() {
		envReady = true
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s (set %s)", libPath, providers.SharedLibEnv)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	envReady = true
	log.Infof("ONNX Runtime %s loaded from %s", ort.GetVersion(), libPath)
	return nil
}

// Network is an inference.Network backed by a dynamic ONNX Runtime session,
// so the input size may change on every call.
type Network struct {
	mu       sync.Mutex
	session  *ort.DynamicAdvancedSession
	outputs  []string
	provider providers.ProviderBackend
	closed   bool
}

// Open creates a session for args.Weights with inputs InputData and
// InputInfo.
//
// Order of operations:
//  1. Environment: load the shared library unless an earlier Open did.
//  2. Provider: args.Provider when set, otherwise derived from args.Device.
//  3. Session options: threading and graph optimization from args.Optimization.
//  4. Session: bind input and output names.
//
// Arguments:
//   - args: The model path, device, provider and outputs.
//   - log: The logger.
//
// Returns:
//   - *Network: The session wrapper.
//   - error: If the runtime or the model cannot be loaded.
func Open(args inference.Args, log logs.Log) (*Network, error) {
	if _, err := os.Stat(args.Weights); err != nil {
		return nil, errors.Wrapf(err, "model file %q", args.Weights)
	}
	if err := initEnvironment(providers.GetSharedLibPath(args.LibraryPath), log); err != nil {
		return nil, err
	}

	provider := args.Device.Provider()
	if args.Provider != "" {
		p, err := providers.NewProvider(args.Provider, args.Device.ID)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	opt := args.Optimization
	if opt == (providers.OptimizationConfig{}) {
		opt = providers.DefaultOptimizationConfig()
	}
	options, err := providers.SessionOptions(opt, provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	outputs := args.Outputs
	if len(outputs) == 0 {
		outputs = []string{inference.OutputDetections}
	}

	session, err := ort.NewDynamicAdvancedSession(
		args.Weights,
		[]string{inference.InputData, inference.InputInfo},
		outputs,
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	log.Debugf("ONNX session %s on %s provider, outputs %v", args.Weights, provider.Backend(), outputs)

	return &Network{
		session:  session,
		outputs:  outputs,
		provider: provider.Backend(),
	}, nil
}

// Provider returns the execution provider the session was built with.
func (n *Network) Provider() providers.ProviderBackend {
	return n.provider
}

// Forward implements inference.Network.
func (n *Network) Forward(ctx context.Context, blob *tensor.Dense, info preprocess.Info) (inference.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, errors.New("session is closed")
	}

	data, err := inference.Float32s(blob)
	if err != nil {
		return nil, err
	}
	input, err := ort.NewTensor(toShape(blob.Shape()), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer input.Destroy()

	imInfo, err := ort.NewTensor(ort.NewShape(1, 3), info.Slice())
	if err != nil {
		return nil, errors.Wrap(err, "error creating im_info tensor")
	}
	defer imInfo.Destroy()

	// nil outputs are allocated by the runtime with the shape it computes.
	values := make([]ort.Value, len(n.outputs))
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	if err := n.session.Run([]ort.Value{input, imInfo}, values); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	out := make(inference.Outputs, len(values))
	for i, name := range n.outputs {
		t, ok := values[i].(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("output %q is %T, expected float32 tensor", name, values[i])
		}
		out[name] = inference.NewOutput(fromShape(t.GetShape()), append([]float32(nil), t.GetData()...))
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
	if err := n.session.Destroy(); err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

func toShape(shape []int) ort.Shape {
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return ort.NewShape(dims...)
}

func fromShape(shape ort.Shape) []int {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return dims
}
