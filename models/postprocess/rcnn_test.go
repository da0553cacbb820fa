package postprocess

import (
	"testing"

	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureHead is two proposals over three classes (background plus two) for a
// 375x500 image resized to 600x800.
func fixtureHead() RCNNHead {
	return RCNNHead{
		BoxDeltas: []float32{
			-0.00006853, -0.00124648, 0.00270347, -0.00204985,
			-0.07667218, -0.06754107, -0.1538136, -0.14635995,
			-0.02706362, -0.05281606, -0.244319, 0.01312275,
			-0.00004825, -0.00113318, 0.00255779, -0.00119238,
			-0.04818296, -0.04687576, -0.1697189, -0.16557491,
			0.04889064, -0.02887787, -0.364709, -0.06754405,
		},
		Scores: []float32{0.01, 0.44, 0.55, 0.12, 0.11, 0.77},
		RoIs: []float32{
			0, 166.21158, 111.19214, 790.75854, 509.0631,
			0, 38.520813, 69.31656, 752.81616, 549.2108,
		},
		NumBoxes:   2,
		NumClasses: 3,
	}
}

var fixtureInfo = preprocess.Info{Height: 600, Width: 800, Factor: 1.6}

func assertRect(t *testing.T, want [4]float32, got images.Rect) {
	t.Helper()
	assert.InDelta(t, want[0], got.X1, 0.05, "x1")
	assert.InDelta(t, want[1], got.Y1, 0.05, "y1")
	assert.InDelta(t, want[2], got.X2, 0.05, "x2")
	assert.InDelta(t, want[3], got.Y2, 0.05, "y2")
}

func TestTransformInvClip(t *testing.T) {
	boxes := transformInvClip(fixtureHead(), fixtureInfo.Width, fixtureInfo.Height)
	require.Len(t, boxes, 6)

	// Values in original-image pixels.
	want := map[int][4]float32{
		0: {103.326, 69.44, 495.351, 318.223},
		1: {101.776, 69.629, 437.003, 284.981},
		2: {135.675, 54.682, 441.895, 307.269},
		3: {23.481, 43.161, 471.686, 343.362},
		4: {37.427, 52.166, 414.702, 306.861},
		5: {114.244, 44.459, 424.681, 325.387},
	}
	for i, w := range want {
		assertRect(t, w, boxes[i].Scale(1/fixtureInfo.Factor))
	}
}

func TestTransformInvClipClipsToImage(t *testing.T) {
	head := RCNNHead{
		BoxDeltas:  []float32{0, 0, 2, 2},
		Scores:     []float32{1},
		RoIs:       []float32{0, 10, 10, 90, 40},
		NumBoxes:   1,
		NumClasses: 1,
	}
	boxes := transformInvClip(head, 100, 50)
	assert.Equal(t, images.Rect{X1: 0, Y1: 0, X2: 99, Y2: 49}, boxes[0])
}

func TestDecodeRCNN(t *testing.T) {
	t.Run("loose nms keeps everything above threshold", func(t *testing.T) {
		results, err := DecodeRCNN(fixtureHead(), fixtureInfo, RCNNConfig{ConfThreshold: 0.1, NMSThreshold: 0.9})
		require.NoError(t, err)
		require.Len(t, results, 4)

		assert.Equal(t, 0, results[0].Class)
		assert.InDelta(t, 0.44, results[0].Score, 1e-6)
		assertRect(t, [4]float32{101.776, 69.629, 437.003, 284.981}, results[0].Box)

		assert.Equal(t, 0, results[1].Class)
		assert.InDelta(t, 0.11, results[1].Score, 1e-6)
		assertRect(t, [4]float32{37.427, 52.166, 414.702, 306.861}, results[1].Box)

		assert.Equal(t, 1, results[2].Class)
		assert.InDelta(t, 0.77, results[2].Score, 1e-6)
		assertRect(t, [4]float32{114.244, 44.459, 424.681, 325.387}, results[2].Box)

		assert.Equal(t, 1, results[3].Class)
		assert.InDelta(t, 0.55, results[3].Score, 1e-6)
		assertRect(t, [4]float32{135.675, 54.682, 441.895, 307.269}, results[3].Box)
	})

	t.Run("nms suppresses overlapping boxes per class", func(t *testing.T) {
		// Overlaps are 0.669 for the first class and 0.798 for the second.
		results, err := DecodeRCNN(fixtureHead(), fixtureInfo, RCNNConfig{ConfThreshold: 0.1, NMSThreshold: 0.6})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 0, results[0].Class)
		assert.InDelta(t, 0.44, results[0].Score, 1e-6)
		assert.Equal(t, 1, results[1].Class)
		assert.InDelta(t, 0.77, results[1].Score, 1e-6)

		results, err = DecodeRCNN(fixtureHead(), fixtureInfo, RCNNConfig{ConfThreshold: 0.1, NMSThreshold: 0.7})
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("parallel nms matches serial", func(t *testing.T) {
		for _, threshold := range []float32{0.6, 0.7, 0.9} {
			serial, err := DecodeRCNN(fixtureHead(), fixtureInfo, RCNNConfig{ConfThreshold: 0.1, NMSThreshold: threshold})
			require.NoError(t, err)
			parallel, err := DecodeRCNN(fixtureHead(), fixtureInfo, RCNNConfig{ConfThreshold: 0.1, NMSThreshold: threshold, NumWorkers: 4})
			require.NoError(t, err)
			assert.Equal(t, serial, parallel, "nms threshold %v", threshold)
		}
	})

	t.Run("nothing above threshold flattens to placeholder", func(t *testing.T) {
		results, err := DecodeRCNN(fixtureHead(), fixtureInfo, RCNNConfig{ConfThreshold: 0.8, NMSThreshold: 0.3})
		require.NoError(t, err)
		assert.Empty(t, results)

		data, shape := Flatten(results)
		assert.Equal(t, []float32{0}, data)
		assert.Equal(t, []int{1}, shape)
	})

	t.Run("background scores are ignored", func(t *testing.T) {
		head := fixtureHead()
		head.Scores = []float32{0.99, 0, 0, 0.99, 0, 0}
		results, err := DecodeRCNN(head, fixtureInfo, DefaultRCNNConfig())
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("no proposals", func(t *testing.T) {
		results, err := DecodeRCNN(RCNNHead{NumClasses: 3}, fixtureInfo, DefaultRCNNConfig())
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestDecodeRCNNErrors(t *testing.T) {
	head := fixtureHead()
	head.Scores = head.Scores[:5]
	_, err := DecodeRCNN(head, fixtureInfo, DefaultRCNNConfig())
	assert.Error(t, err)

	head = fixtureHead()
	head.RoIs = append(head.RoIs, 0)
	_, err = DecodeRCNN(head, fixtureInfo, DefaultRCNNConfig())
	assert.Error(t, err)

	head = fixtureHead()
	head.BoxDeltas = head.BoxDeltas[:20]
	_, err = DecodeRCNN(head, fixtureInfo, DefaultRCNNConfig())
	assert.Error(t, err)

	_, err = DecodeRCNN(fixtureHead(), preprocess.Info{Height: 600, Width: 800}, DefaultRCNNConfig())
	assert.Error(t, err)
}

func TestFlatten(t *testing.T) {
	results := []Result{
		{Box: images.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}, Score: 0.5, Class: 7},
		{Box: images.Rect{X1: 5, Y1: 6, X2: 7, Y2: 8}, Score: 0.25, Class: 0},
	}
	data, shape := Flatten(results)
	assert.Equal(t, []int{2, 6}, shape)
	assert.Equal(t, []float32{7, 0.5, 1, 2, 3, 4, 0, 0.25, 5, 6, 7, 8}, data)
}

func TestSortByScoreIsStable(t *testing.T) {
	results := []Result{
		{Score: 0.2, Class: 0},
		{Score: 0.9, Class: 1},
		{Score: 0.2, Class: 2},
		{Score: 0.5, Class: 3},
	}
	SortByScore(results)

	var classes []int
	for _, r := range results {
		classes = append(classes, r.Class)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, classes)
}
