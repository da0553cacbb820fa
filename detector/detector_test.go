package detector

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/inference/engine"
	"github.com/nvr-ai/go-frcnn/inference/inferencetest"
	"github.com/nvr-ai/go-frcnn/models"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/nvr-ai/go-frcnn/profiler"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetector(t *testing.T, net inference.Network, opts Options) *Detector {
	t.Helper()
	d, err := New(net, inference.CPU, opts, logs.NewTestingLog(t))
	require.NoError(t, err)
	return d
}

// synthetic is the 500x300 warm-up image. With the default preprocessing its
// factor is 2.
func synthetic() *images.Raster {
	return images.Filled(500, 300, 128)
}

func TestDetectFeedsNetwork(t *testing.T) {
	net := inferencetest.WithDetections([]int{1}, []float32{0})
	d := newDetector(t, net, DefaultOptions())

	_, err := d.Detect(context.Background(), synthetic())
	require.NoError(t, err)

	calls := net.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []int{1, 3, 600, 1000}, calls[0].Shape)
	assert.Equal(t, preprocess.Info{Height: 600, Width: 1000, Factor: 2}, calls[0].Info)
}

func TestDetectNonRank2IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		data  []float32
	}{
		{"dummy", []int{1}, []float32{0}},
		{"rank 3", []int{1, 1, 6}, []float32{0, 0.9, 1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDetector(t, inferencetest.WithDetections(tt.shape, tt.data), DefaultOptions())
			dets, err := d.Detect(context.Background(), synthetic())
			require.NoError(t, err)
			assert.Empty(t, dets)
			assert.Equal(t, [2]int{0, 6}, dets.Shape())
		})
	}
}

func TestDetectPassthrough(t *testing.T) {
	rows := []float32{
		2, 0.95, 10, 20, 110, 220,
		0, 0.40, 1, 2, 3, 4,
		79, 0.10, 0, 0, 999, 499,
	}
	d := newDetector(t, inferencetest.WithDetections([]int{3, 6}, rows), DefaultOptions())

	dets, err := d.Detect(context.Background(), synthetic())
	require.NoError(t, err)
	assert.Equal(t, [2]int{3, 6}, dets.Shape())
	got := make([][6]float32, len(dets))
	for i, det := range dets {
		got[i] = det.Row()
	}
	assert.Equal(t, [][6]float32{
		{2, 0.95, 10, 20, 110, 220},
		{0, 0.40, 1, 2, 3, 4},
		{79, 0.10, 0, 0, 999, 499},
	}, got)
}

func TestDetectValidatesTable(t *testing.T) {
	tests := []struct {
		name  string
		opts  func(*Options)
		shape []int
		data  []float32
		want  error
	}{
		{"width 5", nil, []int{1, 5}, []float32{0, 0.9, 1, 2, 3}, ErrTableWidth},
		{"class past coco", nil, []int{1, 6}, []float32{80, 0.9, 1, 2, 3, 4}, ErrClassID},
		{"class past voc", func(o *Options) { o.Dataset = models.DatasetVOC }, []int{1, 6}, []float32{20, 0.9, 1, 2, 3, 4}, ErrClassID},
		{"negative class", nil, []int{1, 6}, []float32{-1, 0.9, 1, 2, 3, 4}, ErrClassID},
		{"fractional class", nil, []int{1, 6}, []float32{1.5, 0.9, 1, 2, 3, 4}, ErrClassID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			d := newDetector(t, inferencetest.WithDetections(tt.shape, tt.data), opts)
			_, err := d.Detect(context.Background(), synthetic())
			assert.Equal(t, tt.want, errors.Cause(err))
		})
	}
}

func TestDetectResizedCoordinates(t *testing.T) {
	rows := []float32{0, 0.9, 20, 40, 100, 200}

	opts := DefaultOptions()
	opts.Coordinates = CoordinatesResized
	d := newDetector(t, inferencetest.WithDetections([]int{1, 6}, rows), opts)

	dets, err := d.Detect(context.Background(), synthetic())
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, images.Rect{X1: 10, Y1: 20, X2: 50, Y2: 100}, dets[0].Box)
	assert.Equal(t, float32(0.9), dets[0].Score)

	opts.Coordinates = CoordinatesOriginal
	d = newDetector(t, inferencetest.WithDetections([]int{1, 6}, rows), opts)
	dets, err = d.Detect(context.Background(), synthetic())
	require.NoError(t, err)
	assert.Equal(t, images.Rect{X1: 20, Y1: 40, X2: 100, Y2: 200}, dets[0].Box)
}

func TestDetectErrors(t *testing.T) {
	net := &inferencetest.Network{Err: errors.New("device lost")}
	d := newDetector(t, net, DefaultOptions())
	_, err := d.Detect(context.Background(), synthetic())
	assert.ErrorContains(t, err, "device lost")

	d = newDetector(t, &inferencetest.Network{Outputs: inference.Outputs{}}, DefaultOptions())
	_, err = d.Detect(context.Background(), synthetic())
	assert.Equal(t, inference.ErrOutputMissing, errors.Cause(err))

	_, err = d.Detect(context.Background(), images.NewRaster(0, 0))
	assert.Error(t, err)
}

func TestNewRejectsBadOptions(t *testing.T) {
	net := &inferencetest.Network{}
	log := logs.NewTestingLog(t)

	opts := DefaultOptions()
	opts.Dataset = "imagenet"
	_, err := New(net, inference.CPU, opts, log)
	assert.Equal(t, models.ErrUnknownDataset, errors.Cause(err))

	opts = DefaultOptions()
	opts.Coordinates = "normalized"
	_, err = New(net, inference.CPU, opts, log)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Preprocess.Transpose = [3]int{0, 0, 1}
	_, err = New(net, inference.CPU, opts, log)
	assert.Error(t, err)
}

func TestOpenCPUSelector(t *testing.T) {
	var got inference.Args
	opener := func(ctx context.Context, backend inference.Backend, args inference.Args, log logs.Log) (inference.Network, error) {
		got = args
		return &inferencetest.Network{}, nil
	}

	b := engine.NewBuilder(logs.NewTestingLog(t)).
		WithModel("deploy.prototxt", "final.caffemodel").
		WithDevice(inference.DeviceFromSelector(-1)).
		WithOpener(opener)
	d, err := Open(context.Background(), b, DefaultOptions(), logs.NewTestingLog(t))
	require.NoError(t, err)

	assert.Equal(t, inference.CPU, d.Device())
	assert.False(t, d.Device().IsGPU())
	assert.Equal(t, inference.CPU, got.Device)
	assert.Equal(t, "final.caffemodel", got.Weights)
}

func TestOpenClosesNetworkOnBadOptions(t *testing.T) {
	net := &inferencetest.Network{}
	opener := func(ctx context.Context, backend inference.Backend, args inference.Args, log logs.Log) (inference.Network, error) {
		return net, nil
	}
	opts := DefaultOptions()
	opts.Dataset = "imagenet"

	b := engine.NewBuilder(logs.NewTestingLog(t)).WithModel("", "m.onnx").WithOpener(opener)
	_, err := Open(context.Background(), b, opts, logs.NewTestingLog(t))
	assert.Error(t, err)
	assert.True(t, net.Closed())
}

func TestDemo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "000456.png")
	require.NoError(t, images.Save(path, synthetic().RGBA()))

	rows := []float32{
		0, 0.9, 10, 10, 50, 50,
		1, 0.3, 5, 5, 20, 20,
	}
	var out bytes.Buffer
	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	opts := DefaultOptions()
	opts.Output = &out
	opts.Profiler = prof
	opts.Threshold = 0.5
	d := newDetector(t, inferencetest.WithDetections([]int{2, 6}, rows), opts)

	canvas, dets, err := d.Demo(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, dets, 2)
	assert.Equal(t, 1, canvas.Boxes())
	assert.Regexp(t, `^Detection took \d+\.\d{3}s for 2 objects\n$`, out.String())

	var names []string
	for _, op := range prof.Operations() {
		names = append(names, op.Name)
	}
	assert.ElementsMatch(t, []string{"preprocess", "forward", "plot"}, names)
}

func TestPlotLineWidth(t *testing.T) {
	img := images.Filled(100, 100, 0)
	dets := Table{{Class: 0, Score: 0.9, Box: images.Rect{X1: 20, Y1: 30, X2: 80, Y2: 90}}}

	opts := DefaultOptions()
	opts.LineWidth = 8
	d := newDetector(t, &inferencetest.Network{}, opts)

	// Options.LineWidth is the default, a positive argument overrides it.
	canvas, err := d.Plot(img, dets, 0, nil, 0)
	require.NoError(t, err)
	r, _, _, _ := canvas.Image().At(50, 86).RGBA()
	assert.NotZero(t, r)

	canvas, err = d.Plot(img, dets, 0, nil, 1)
	require.NoError(t, err)
	r, _, _, _ = canvas.Image().At(50, 86).RGBA()
	assert.Zero(t, r)
	assert.Equal(t, 1, canvas.Boxes())
}

func TestDemoMissingImage(t *testing.T) {
	d := newDetector(t, &inferencetest.Network{}, DefaultOptions())
	_, _, err := d.Demo(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	net := &inferencetest.Network{}
	d := newDetector(t, net, DefaultOptions())
	require.NoError(t, d.Close())
	assert.True(t, net.Closed())
}
