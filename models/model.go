// Package models - Datasets a detector can be trained on and their class tables.
package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Dataset identifies the label set a network was trained on.
type Dataset string

const (
	// DatasetVOC is Pascal VOC: 20 foreground classes.
	DatasetVOC Dataset = "voc"
	// DatasetCOCO is MS COCO: 80 foreground classes.
	DatasetCOCO Dataset = "coco"
)

// DefaultDataset is used when no dataset is configured.
const DefaultDataset = DatasetCOCO

// ErrUnknownDataset is returned for dataset names without a class table.
var ErrUnknownDataset = errors.New("unknown dataset")

// ParseDataset normalises a dataset name. An empty name selects DefaultDataset.
//
// Arguments:
//   - name: "voc" or "coco", case-insensitive.
//
// Returns:
//   - Dataset: The parsed dataset.
//   - error: ErrUnknownDataset for anything else.
func ParseDataset(name string) (Dataset, error) {
	switch Dataset(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultDataset, nil
	case DatasetVOC:
		return DatasetVOC, nil
	case DatasetCOCO:
		return DatasetCOCO, nil
	default:
		return "", errors.Wrapf(ErrUnknownDataset, "%q (want voc or coco)", name)
	}
}
