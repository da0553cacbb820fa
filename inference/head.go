package inference

import (
	"context"
	"strings"

	"github.com/nvr-ai/go-frcnn/models/postprocess"
	"github.com/nvr-ai/go-frcnn/models/preprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// HeadMode selects how the detection table is obtained.
type HeadMode string

const (
	// HeadFused reads the network's own OutputDetections blob.
	HeadFused HeadMode = "fused"
	// HeadRaw reads OutputBoxDeltas, OutputScores and OutputRoIs and decodes
	// them in Go.
	HeadRaw HeadMode = "raw"
)

// ParseHeadMode parses a head mode, defaulting to HeadFused.
func ParseHeadMode(name string) (HeadMode, error) {
	switch m := HeadMode(strings.ToLower(strings.TrimSpace(name))); m {
	case "":
		return HeadFused, nil
	case HeadFused, HeadRaw:
		return m, nil
	default:
		return "", errors.Errorf("unknown head mode %q", name)
	}
}

// Outputs returns the blobs a network must produce for the mode.
func (m HeadMode) Outputs() []string {
	if m == HeadRaw {
		return []string{OutputBoxDeltas, OutputScores, OutputRoIs}
	}
	return []string{OutputDetections}
}

// RawHead wraps a network that stops before the detection output layer and
// decodes its raw outputs into OutputDetections.
type RawHead struct {
	Network
	Config postprocess.RCNNConfig
}

// NewRawHead returns net wrapped with Go-side decoding.
func NewRawHead(net Network, cfg postprocess.RCNNConfig) *RawHead {
	return &RawHead{Network: net, Config: cfg}
}

// Forward runs the wrapped network and replaces its raw outputs with the
// decoded OutputDetections table. When nothing survives decoding the table is
// the rank-1 placeholder [0].
func (h *RawHead) Forward(ctx context.Context, blob *tensor.Dense, info preprocess.Info) (Outputs, error) {
	out, err := h.Network.Forward(ctx, blob, info)
	if err != nil {
		return nil, err
	}

	head, err := HeadFromOutputs(out)
	if err != nil {
		return nil, err
	}
	results, err := postprocess.DecodeRCNN(head, info, h.Config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode detection head")
	}

	data, shape := postprocess.Flatten(results)
	return Outputs{OutputDetections: NewTensor(shape, data)}, nil
}

// HeadFromOutputs reads the raw head blobs. Proposal count comes from the RoI
// blob and class count from the scores, so trailing singleton axes (as Caffe
// emits for fully connected layers) are tolerated.
func HeadFromOutputs(out Outputs) (postprocess.RCNNHead, error) {
	var head postprocess.RCNNHead
	blobs := make(map[string][]float32, 3)
	for _, name := range HeadRaw.Outputs() {
		t, err := out.Get(name)
		if err != nil {
			return head, err
		}
		if name == OutputRoIs && t.Dims() < 2 {
			// No proposals.
			return head, nil
		}
		data, err := Float32s(t)
		if err != nil {
			return head, errors.Wrapf(err, "output %q", name)
		}
		blobs[name] = data
	}

	head.RoIs = blobs[OutputRoIs]
	head.Scores = blobs[OutputScores]
	head.BoxDeltas = blobs[OutputBoxDeltas]

	if len(head.RoIs)%5 != 0 {
		return head, errors.Errorf("rois has %d values, not a multiple of 5", len(head.RoIs))
	}
	head.NumBoxes = len(head.RoIs) / 5
	if head.NumBoxes > 0 {
		head.NumClasses = len(head.Scores) / head.NumBoxes
	}
	return head, head.Validate()
}
