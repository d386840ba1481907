package mask

import (
	"math/rand/v2"
	"sort"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/core/parallel"
	"github.com/goml-jp/invase/pkg/errors"
)

// ExcludedValue marks a substitution that drew the feature's original value.
// Replacing a value with itself hides nothing, so the position is overwritten
// with this sentinel instead; the degradation measured for such a draw cannot
// be credited to the feature. The sentinel lies outside the value range of
// typical encoded features.
const ExcludedValue = -1.0

// Row counts below this are masked sequentially.
const parallelThreshold = 256

// Masker replaces hidden features with draws from their observed empirical
// distributions. The per-feature value tables are captured once at
// construction and are immutable afterwards.
type Masker struct {
	values [][]float64 // observed unique values, per feature
	seed   uint64
	calls  atomic.Uint64
}

// NewMasker builds a Masker from the reference data X, recording the set of
// unique observed values of every column.
func NewMasker(X mat.Matrix, seed uint64) (*Masker, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewMasker")
	}

	values := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		seen := make(map[float64]struct{}, rows)
		col := make([]float64, 0, rows)
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			col = append(col, v)
		}
		sort.Float64s(col)
		values[j] = col
	}

	return &Masker{values: values, seed: seed}, nil
}

// NumFeatures returns the number of per-feature value tables.
func (m *Masker) NumFeatures() int {
	return len(m.values)
}

// Values returns the observed value table for one feature.
func (m *Masker) Values(feature int) []float64 {
	return m.values[feature]
}

// Mask applies the selection matrix sel to X: positions with selection bit 1
// keep their original value, positions with bit 0 are replaced by an
// independent uniform draw from the feature's observed-value table. Draws
// equal to the original value become ExcludedValue. Each row of sel masks the
// corresponding row of X, so a batch of instances can carry distinct masks.
func (m *Masker) Mask(X, sel mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	selRows, selCols := sel.Dims()

	if cols != len(m.values) {
		return nil, errors.NewDimensionError("Masker.Mask", len(m.values), cols, 1)
	}
	if selRows != rows {
		return nil, errors.NewDimensionError("Masker.Mask", rows, selRows, 0)
	}
	if selCols != cols {
		return nil, errors.NewDimensionError("Masker.Mask", cols, selCols, 1)
	}

	out := mat.NewDense(rows, cols, nil)
	call := m.calls.Add(1)

	parallel.ParallelizeWithThreshold(rows, parallelThreshold, func(start, end int) {
		rng := rand.New(rand.NewPCG(m.seed+call, uint64(start)))
		for i := start; i < end; i++ {
			for j := 0; j < cols; j++ {
				orig := X.At(i, j)
				if sel.At(i, j) != 0 {
					out.Set(i, j, orig)
					continue
				}
				table := m.values[j]
				drawn := table[rng.IntN(len(table))]
				if drawn == orig {
					drawn = ExcludedValue
				}
				out.Set(i, j, drawn)
			}
		}
	})

	return out, nil
}

// MaskBroadcast applies a single selection mask to every row of X.
func (m *Masker) MaskBroadcast(X mat.Matrix, sel []float64) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if len(sel) != cols {
		return nil, errors.NewDimensionError("Masker.MaskBroadcast", cols, len(sel), 1)
	}
	selMat := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		selMat.SetRow(i, sel)
	}
	return m.Mask(X, selMat)
}
