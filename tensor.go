package invase

import (
	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
)

// ImportanceTensor holds per-instance, per-feature importance scores.
// Classification explainers produce one horizon; risk estimators produce one
// score per evaluation horizon. Storage is a dense [instances × features·horizons]
// matrix in feature-major order (feature f, horizon t lives in column f·H+t).
type ImportanceTensor struct {
	data     *mat.Dense
	features int
	horizons int
}

func newImportanceTensor(data *mat.Dense, features, horizons int) *ImportanceTensor {
	return &ImportanceTensor{data: data, features: features, horizons: horizons}
}

// Dims returns the tensor shape as (instances, features, horizons).
func (t *ImportanceTensor) Dims() (n, features, horizons int) {
	rows, _ := t.data.Dims()
	return rows, t.features, t.horizons
}

// At returns the importance of feature j for instance i at horizon h.
func (t *ImportanceTensor) At(i, j, h int) float64 {
	return t.data.At(i, j*t.horizons+h)
}

// Matrix returns the backing [instances × features·horizons] matrix. For
// single-horizon explainers this is the [instances × features] importance
// matrix itself.
func (t *ImportanceTensor) Matrix() *mat.Dense {
	return t.data
}

// HorizonSlice extracts the [instances × features] importance matrix of one
// evaluation horizon.
func (t *ImportanceTensor) HorizonSlice(h int) (*mat.Dense, error) {
	if h < 0 || h >= t.horizons {
		return nil, errors.NewValueError("ImportanceTensor.HorizonSlice", "horizon index out of range")
	}
	rows, _ := t.data.Dims()
	out := mat.NewDense(rows, t.features, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < t.features; j++ {
			out.Set(i, j, t.At(i, j, h))
		}
	}
	return out, nil
}

// meanTensors returns the elementwise mean of same-shaped tensors.
func meanTensors(ts []*ImportanceTensor) *ImportanceTensor {
	rows, cols := ts[0].data.Dims()
	sum := mat.NewDense(rows, cols, nil)
	for _, t := range ts {
		sum.Add(sum, t.data)
	}
	sum.Scale(1/float64(len(ts)), sum)
	return newImportanceTensor(sum, ts[0].features, ts[0].horizons)
}
