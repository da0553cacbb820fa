package inference_test

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/inference/inferencetest"
	"github.com/nvr-ai/go-frcnn/inference/providers"
	"github.com/nvr-ai/go-frcnn/models/postprocess"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestDeviceFromSelector(t *testing.T) {
	tests := []struct {
		gpu      int
		wantGPU  bool
		wantID   int
		provider providers.ProviderBackend
		str      string
	}{
		{-1, false, 0, providers.CPUProviderBackend, "cpu"},
		{-7, false, 0, providers.CPUProviderBackend, "cpu"},
		{0, true, 0, providers.CUDAProviderBackend, "gpu:0"},
		{2, true, 2, providers.CUDAProviderBackend, "gpu:2"},
	}
	for _, tt := range tests {
		d := inference.DeviceFromSelector(tt.gpu)
		assert.Equal(t, tt.wantGPU, d.IsGPU(), "selector %d", tt.gpu)
		assert.Equal(t, tt.wantID, d.ID)
		assert.Equal(t, tt.provider, d.Provider().Backend())
		assert.Equal(t, tt.str, d.String())
	}
}

func TestOutputsGet(t *testing.T) {
	out := inference.Outputs{
		inference.OutputRoIs:   inference.NewTensor([]int{1, 5}, make([]float32, 5)),
		inference.OutputScores: inference.NewTensor([]int{1, 2}, make([]float32, 2)),
	}

	got, err := out.Get(inference.OutputRoIs)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, []int(got.Shape()))

	_, err = out.Get(inference.OutputDetections)
	assert.Equal(t, inference.ErrOutputMissing, errors.Cause(err))
	assert.Contains(t, err.Error(), "cls_prob, rois")
}

func TestParseBackend(t *testing.T) {
	b, err := inference.ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, inference.BackendOpenCV, b)

	b, err = inference.ParseBackend("ONNX")
	require.NoError(t, err)
	assert.Equal(t, inference.BackendONNX, b)

	_, err = inference.ParseBackend("tensorrt")
	assert.Equal(t, inference.ErrUnknownBackend, errors.Cause(err))
}

func TestHeadModeOutputs(t *testing.T) {
	m, err := inference.ParseHeadMode("")
	require.NoError(t, err)
	assert.Equal(t, []string{"rcnn_out"}, m.Outputs())

	m, err = inference.ParseHeadMode("raw")
	require.NoError(t, err)
	assert.Equal(t, []string{"bbox_pred", "cls_prob", "rois"}, m.Outputs())

	_, err = inference.ParseHeadMode("sigmoid")
	assert.Error(t, err)
}

func rawOutputs() inference.Outputs {
	// One proposal, background plus one class, identity deltas.
	return inference.Outputs{
		inference.OutputRoIs:      inference.NewTensor([]int{1, 5}, []float32{0, 10, 20, 49, 59}),
		inference.OutputScores:    inference.NewTensor([]int{1, 2}, []float32{0.1, 0.9}),
		inference.OutputBoxDeltas: inference.NewTensor([]int{1, 8, 1, 1}, make([]float32, 8)),
	}
}

func TestRawHeadForward(t *testing.T) {
	fake := &inferencetest.Network{Outputs: rawOutputs()}
	head := inference.NewRawHead(fake, postprocess.DefaultRCNNConfig())

	blob := tensor.New(tensor.WithShape(1, 3, 4, 4), tensor.WithBacking(make([]float32, 48)))
	info := preprocess.Info{Height: 100, Width: 100, Factor: 2}

	out, err := head.Forward(context.Background(), blob, info)
	require.NoError(t, err)

	dets, err := out.Get(inference.OutputDetections)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6}, []int(dets.Shape()))

	data, err := inference.Float32s(dets)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.9, 5, 10, 25, 30}, data, 1e-4)

	require.Len(t, fake.Calls(), 1)
	assert.Equal(t, []int{1, 3, 4, 4}, fake.Calls()[0].Shape)
	assert.Equal(t, info, fake.Calls()[0].Info)

	require.NoError(t, head.Close())
	assert.True(t, fake.Closed())
}

func TestRawHeadNothingSurvives(t *testing.T) {
	out := rawOutputs()
	out[inference.OutputScores] = inference.NewTensor([]int{1, 2}, []float32{0.99, 0.01})

	head := inference.NewRawHead(&inferencetest.Network{Outputs: out}, postprocess.DefaultRCNNConfig())
	blob := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(make([]float32, 12)))

	got, err := head.Forward(context.Background(), blob, preprocess.Info{Height: 100, Width: 100, Factor: 1})
	require.NoError(t, err)
	dets, err := got.Get(inference.OutputDetections)
	require.NoError(t, err)
	assert.Equal(t, 1, dets.Dims())
}

func TestHeadFromOutputsErrors(t *testing.T) {
	out := rawOutputs()
	delete(out, inference.OutputScores)
	_, err := inference.HeadFromOutputs(out)
	assert.Equal(t, inference.ErrOutputMissing, errors.Cause(err))

	out = rawOutputs()
	out[inference.OutputRoIs] = inference.NewTensor([]int{1, 4}, make([]float32, 4))
	_, err = inference.HeadFromOutputs(out)
	assert.Error(t, err)

	out = rawOutputs()
	out[inference.OutputBoxDeltas] = inference.NewTensor([]int{1, 4}, make([]float32, 4))
	_, err = inference.HeadFromOutputs(out)
	assert.Error(t, err)
}
