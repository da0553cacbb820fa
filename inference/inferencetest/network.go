// Package inferencetest provides an in-memory inference.Network for tests.
package inferencetest

import (
	"context"
	"sync"

	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"gorgonia.org/tensor"
)

// Call records one Forward invocation.
type Call struct {
	Shape []int
	Info  preprocess.Info
}

// Network returns canned outputs and records what it was fed.
type Network struct {
	mu sync.Mutex

	// Outputs is returned by every Forward call, unless Func is set.
	Outputs inference.Outputs
	// Func computes outputs per call.
	Func func(blob *tensor.Dense, info preprocess.Info) (inference.Outputs, error)
	// Err is returned by Forward when set.
	Err error

	calls  []Call
	closed bool
}

// WithDetections returns a network whose OutputDetections blob has the given
// shape and data.
func WithDetections(shape []int, data []float32) *Network {
	return &Network{
		Outputs: inference.Outputs{inference.OutputDetections: inference.NewTensor(shape, data)},
	}
}

// Forward implements inference.Network.
func (n *Network) Forward(ctx context.Context, blob *tensor.Dense, info preprocess.Info) (inference.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.calls = append(n.calls, Call{Shape: append([]int(nil), blob.Shape()...), Info: info})
	n.mu.Unlock()

	if n.Err != nil {
		return nil, n.Err
	}
	if n.Func != nil {
		return n.Func(blob, info)
	}
	return n.Outputs, nil
}

// Close implements inference.Network.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

// Calls returns the recorded Forward invocations.
func (n *Network) Calls() []Call {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Call(nil), n.calls...)
}

// Closed reports whether Close was called.
func (n *Network) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
