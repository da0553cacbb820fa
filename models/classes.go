package models

import (
	"github.com/pkg/errors"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The zero-based foreground index emitted in detection rows.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a dataset to its foreground labels. Index i is the
// class id a detection row carries; the background class the network scores
// internally is not part of the set.
type OutputClassSet struct {
	// Class set identifier.
	Dataset Dataset
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// newClassSet builds a set from names in index order.
func newClassSet(dataset Dataset, names ...string) *OutputClassSet {
	set := &OutputClassSet{
		Dataset:   dataset,
		Classes:   make([]OutputClass, len(names)),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		set.Classes[i] = OutputClass{Index: i, Name: name}
		set.nameToIdx[name] = i
	}
	return set
}

// Len returns the number of foreground classes.
func (s *OutputClassSet) Len() int {
	return len(s.Classes)
}

// WithBackground returns the number of classes the network scores, which is
// Len plus one background class at index 0.
func (s *OutputClassSet) WithBackground() int {
	return len(s.Classes) + 1
}

// Valid reports whether id indexes the set.
func (s *OutputClassSet) Valid(id int) bool {
	return id >= 0 && id < len(s.Classes)
}

// Name returns the label for a class id.
//
// Arguments:
//   - id: The zero-based foreground class id.
//
// Returns:
//   - string: The class name.
//   - error: If id is out of range.
func (s *OutputClassSet) Name(id int) (string, error) {
	if !s.Valid(id) {
		return "", errors.Errorf("class id %d out of range for %s (%d classes)", id, s.Dataset, len(s.Classes))
	}
	return s.Classes[id].Name, nil
}

// Index returns the class id for a label.
func (s *OutputClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in %s", name, s.Dataset)
	}
	return idx, nil
}

// Names returns the labels in index order.
func (s *OutputClassSet) Names() []string {
	names := make([]string, len(s.Classes))
	for i, c := range s.Classes {
		names[i] = c.Name
	}
	return names
}

// PascalVOCClasses is the 20 Pascal VOC classes.
var PascalVOCClasses = newClassSet(DatasetVOC,
	"aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car",
	"cat", "chair", "cow", "diningtable", "dog", "horse", "motorbike",
	"person", "pottedplant", "sheep", "sofa", "train", "tvmonitor",
)

// COCOClasses is the 80 MS COCO classes.
var COCOClasses = newClassSet(DatasetCOCO,
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep",
	"cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella",
	"handbag", "tie", "suitcase", "frisbee", "skis", "snowboard",
	"sports ball", "kite", "baseball bat", "baseball glove", "skateboard",
	"surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork",
	"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv",
	"laptop", "mouse", "remote", "keyboard", "cell phone", "microwave",
	"oven", "toaster", "sink", "refrigerator", "book", "clock", "vase",
	"scissors", "teddy bear", "hair drier", "toothbrush",
)

// Classes returns the class table for a dataset.
//
// Arguments:
//   - dataset: The dataset identifier.
//
// Returns:
//   - *OutputClassSet: The shared, read-only class table.
//   - error: ErrUnknownDataset if no table is registered.
func Classes(dataset Dataset) (*OutputClassSet, error) {
	switch dataset {
	case DatasetVOC:
		return PascalVOCClasses, nil
	case DatasetCOCO:
		return COCOClasses, nil
	default:
		return nil, errors.Wrapf(ErrUnknownDataset, "%q", dataset)
	}
}
