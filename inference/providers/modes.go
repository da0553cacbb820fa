package providers

// ProviderMode represents where a network executes.
type ProviderMode string

const (
	// ProviderModeCPU uses CPU for inference.
	ProviderModeCPU ProviderMode = "cpu"

	// ProviderModeGPU uses an accelerator for inference.
	ProviderModeGPU ProviderMode = "gpu"
)
