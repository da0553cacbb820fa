// Package providers - ONNX Runtime execution providers.
package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an ONNX Runtime execution provider.
type ProviderBackend string

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	// Backend returns the provider name.
	Backend() ProviderBackend
	// Apply appends the provider to the session options.
	Apply(options *ort.SessionOptions) error
}

// ErrUnknownProvider is returned for provider names that are not supported.
var ErrUnknownProvider = errors.New("unknown execution provider")

// Backends lists the supported providers.
var Backends = []ProviderBackend{
	CPUProviderBackend,
	CUDAProviderBackend,
	CoreMLProviderBackend,
	OpenVINOProviderBackend,
}

// ParseBackend parses a provider name. The empty string is accepted and
// returned unchanged, meaning "derive from the device".
func ParseBackend(name string) (ProviderBackend, error) {
	b := ProviderBackend(strings.ToLower(strings.TrimSpace(name)))
	if b == "" {
		return "", nil
	}
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownProvider, "%q", name)
}

// ForDevice returns the provider that executes on the given device: CUDA
// with that device index for GPU mode and the default CPU provider otherwise.
//
// Arguments:
//   - mode: The device mode.
//   - id: The accelerator index, ignored for CPU.
//
// Returns:
//   - ExecutionProvider: The provider.
func ForDevice(mode ProviderMode, id int) ExecutionProvider {
	if mode == ProviderModeGPU {
		return NewCUDAProvider(CUDAOptions{DeviceID: id, DoCopyInDefaultStream: true})
	}
	return NewCPUProvider()
}

// NewProvider creates a provider by name with default options. CUDA and
// OpenVINO receive the device index.
//
// Arguments:
//   - backend: The provider name.
//   - id: The device index.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: ErrUnknownProvider if the name is not supported.
func NewProvider(backend ProviderBackend, id int) (ExecutionProvider, error) {
	switch backend {
	case CPUProviderBackend:
		return NewCPUProvider(), nil
	case CUDAProviderBackend:
		return NewCUDAProvider(CUDAOptions{DeviceID: id, DoCopyInDefaultStream: true}), nil
	case CoreMLProviderBackend:
		return NewCoreMLProvider(CoreMLOptions{}), nil
	case OpenVINOProviderBackend:
		return NewOpenVINOProvider(OpenVINOOptions{DeviceType: "CPU", DeviceID: itoa(id)}), nil
	default:
		return nil, errors.Wrapf(ErrUnknownProvider, "%q", backend)
	}
}
