package inference

import (
	"fmt"

	"github.com/nvr-ai/go-frcnn/inference/providers"
)

// Device is where one network instance executes. It is passed to the backend
// that builds the network; nothing about it is process-wide.
type Device struct {
	Mode providers.ProviderMode
	// ID is the accelerator index. It is ignored in CPU mode.
	ID int
}

// CPU is the CPU device.
var CPU = Device{Mode: providers.ProviderModeCPU}

// GPU returns the accelerator device with the given index.
func GPU(id int) Device {
	return Device{Mode: providers.ProviderModeGPU, ID: id}
}

// DeviceFromSelector maps the command-line device selector to a Device: a
// negative value means CPU, anything else is an accelerator index.
//
// @example
// DeviceFromSelector(-1) // CPU, even on a machine with a GPU
// DeviceFromSelector(0)  // first GPU
func DeviceFromSelector(gpu int) Device {
	if gpu < 0 {
		return CPU
	}
	return GPU(gpu)
}

// IsGPU reports whether the device is an accelerator.
func (d Device) IsGPU() bool {
	return d.Mode == providers.ProviderModeGPU
}

// Provider returns the ONNX Runtime execution provider for the device.
func (d Device) Provider() providers.ExecutionProvider {
	return providers.ForDevice(d.Mode, d.ID)
}

func (d Device) String() string {
	if d.IsGPU() {
		return fmt.Sprintf("gpu:%d", d.ID)
	}
	return "cpu"
}
