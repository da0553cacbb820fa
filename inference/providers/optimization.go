// Package providers - ONNX Runtime session tuning.
package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// OptimizationConfig contains ONNX Runtime session settings.
type OptimizationConfig struct {
	// GraphOptimizationLevel controls the level of graph optimization
	GraphOptimizationLevel ort.GraphOptimizationLevel `json:"graph_optimization_level" yaml:"graph_optimization_level"`

	// ExecutionMode controls sequential vs parallel execution
	ExecutionMode ort.ExecutionMode `json:"execution_mode" yaml:"execution_mode"`

	// IntraOpNumThreads sets threads for parallelizing ops
	IntraOpNumThreads int `json:"intra_op_num_threads" yaml:"intra_op_num_threads"`

	// InterOpNumThreads sets threads for parallelizing independent ops
	InterOpNumThreads int `json:"inter_op_num_threads" yaml:"inter_op_num_threads"`
}

// DefaultOptimizationConfig returns the session settings used by the demo.
// A single image runs at a time, so execution is sequential and the intra-op
// pool gets half the cores.
func DefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		GraphOptimizationLevel: ort.GraphOptimizationLevelEnableExtended,
		ExecutionMode:          ort.ExecutionModeSequential,
		IntraOpNumThreads:      max(1, runtime.NumCPU()/2),
		InterOpNumThreads:      1,
	}
}

// SessionOptions builds session options from config and appends the
// provider.
//
// Order of operations:
//  1. Session options: threading, optimization level and execution mode.
//  2. Execution provider: CUDA, CoreML or OpenVINO when requested; CPU adds
//     nothing.
//
// Arguments:
//   - config: Optimization configuration to apply.
//   - provider: The execution provider, or nil for CPU.
//
// Returns:
//   - *ort.SessionOptions: Configured session options. The caller must Destroy them.
//   - error: Configuration error if any.
//
// @example
// options, err := SessionOptions(DefaultOptimizationConfig(), ForDevice(ProviderModeGPU, 0))
//
//	if err != nil {
//	    return err
//	}
//
// defer options.Destroy()
func SessionOptions(config OptimizationConfig, provider ExecutionProvider) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"intra-op threads", func() error { return options.SetIntraOpNumThreads(config.IntraOpNumThreads) }},
		{"inter-op threads", func() error { return options.SetInterOpNumThreads(config.InterOpNumThreads) }},
		{"graph optimization level", func() error { return options.SetGraphOptimizationLevel(config.GraphOptimizationLevel) }},
		{"execution mode", func() error { return options.SetExecutionMode(config.ExecutionMode) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "failed to set %s", step.name)
		}
	}

	if provider != nil {
		if err := provider.Apply(options); err != nil {
			options.Destroy()
			return nil, errors.Wrapf(err, "failed to configure %s provider", provider.Backend())
		}
	}

	return options, nil
}
