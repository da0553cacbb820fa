package detector

import (
	"github.com/nvr-ai/go-frcnn/images"
	"github.com/nvr-ai/go-frcnn/inference"
	"github.com/nvr-ai/go-frcnn/models"
	"github.com/nvr-ai/go-frcnn/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// RowWidth is the number of values in a detection row:
// [class_id, score, x_min, y_min, x_max, y_max].
const RowWidth = 6

var (
	// ErrTableWidth is returned for a rank-2 output whose rows are not RowWidth wide.
	ErrTableWidth = errors.New("detection rows must have 6 values")
	// ErrClassID is returned when a row's class id does not index the class table.
	ErrClassID = errors.New("class id outside class table")
)

// Detection is one row of a detection table.
type Detection = postprocess.Result

// Table is the list of detections for one image, in network order.
type Table []Detection

// Shape returns the table shape as (rows, RowWidth). An empty table is (0, 6).
func (t Table) Shape() [2]int {
	return [2]int{len(t), RowWidth}
}

// Scale returns a copy with every box multiplied by f.
func (t Table) Scale(f float32) Table {
	out := make(Table, len(t))
	for i, d := range t {
		d.Box = d.Box.Scale(f)
		out[i] = d
	}
	return out
}

// TableFromTensor reads a detection table from a network output.
//
// Anything that is not rank 2 means the network found nothing, and yields an
// empty table. Rank-2 outputs must be RowWidth wide and every class id must be
// a whole number indexing classes.
//
// Arguments:
//   - t: The rcnn_out blob.
//   - classes: The active class table.
//
// Returns:
//   - Table: The detections in network order.
//   - error: ErrTableWidth or ErrClassID.
func TableFromTensor(t *tensor.Dense, classes *models.OutputClassSet) (Table, error) {
	if t.Dims() != 2 {
		return Table{}, nil
	}
	shape := t.Shape()
	if shape[1] != RowWidth {
		return nil, errors.Wrapf(ErrTableWidth, "got shape %v", shape)
	}
	data, err := inference.Float32s(t)
	if err != nil {
		return nil, err
	}
	return TableFromRows(data, shape[0], classes)
}

// TableFromRows reads n row-major detection rows from data.
func TableFromRows(data []float32, n int, classes *models.OutputClassSet) (Table, error) {
	if len(data) != n*RowWidth {
		return nil, errors.Wrapf(ErrTableWidth, "%d values for %d rows", len(data), n)
	}
	table := make(Table, n)
	for i := range table {
		row := data[i*RowWidth : (i+1)*RowWidth]
		id := int(row[0])
		if float32(id) != row[0] || !classes.Valid(id) {
			return nil, errors.Wrapf(ErrClassID, "row %d has class %v, %s has %d classes", i, row[0], classes.Dataset, classes.Len())
		}
		table[i] = Detection{
			Class: id,
			Score: row[1],
			Box:   images.Rect{X1: row[2], Y1: row[3], X2: row[4], Y2: row[5]},
		}
	}
	return table, nil
}
