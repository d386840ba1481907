package mask

import (
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
)

func testData() *mat.Dense {
	return mat.NewDense(4, 3, []float64{
		0.0, 1.0, 2.0,
		0.5, 1.5, 2.5,
		0.0, 1.0, 3.0,
		1.0, 2.0, 2.0,
	})
}

func TestMaskAllOnesIsIdentity(t *testing.T) {
	X := testData()
	m, err := NewMasker(X, 7)
	if err != nil {
		t.Fatalf("NewMasker failed: %v", err)
	}

	out, err := m.MaskBroadcast(X, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("MaskBroadcast failed: %v", err)
	}
	if !mat.Equal(out, X) {
		t.Errorf("all-ones mask must be the identity\ngot:\n%v\nwant:\n%v",
			mat.Formatted(out), mat.Formatted(X))
	}
}

func TestMaskAllZerosDrawsFromObservedValues(t *testing.T) {
	X := testData()
	m, err := NewMasker(X, 7)
	if err != nil {
		t.Fatalf("NewMasker failed: %v", err)
	}

	out, err := m.MaskBroadcast(X, []float64{0, 0, 0})
	if err != nil {
		t.Fatalf("MaskBroadcast failed: %v", err)
	}

	rows, cols := out.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := out.At(i, j)
			if v == ExcludedValue {
				continue
			}
			if v == X.At(i, j) {
				t.Errorf("hidden cell (%d,%d) kept its original value %v without the sentinel", i, j, v)
			}
			found := false
			for _, obs := range m.Values(j) {
				if v == obs {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("hidden cell (%d,%d) = %v is not an observed value of feature %d", i, j, v, j)
			}
		}
	}
}

func TestMaskPerRowSelections(t *testing.T) {
	X := testData()
	m, err := NewMasker(X, 7)
	if err != nil {
		t.Fatalf("NewMasker failed: %v", err)
	}

	// Row 0 keeps everything, row 2 keeps only feature 1.
	sel := mat.NewDense(4, 3, []float64{
		1, 1, 1,
		1, 1, 1,
		0, 1, 0,
		1, 1, 1,
	})
	out, err := m.Mask(X, sel)
	if err != nil {
		t.Fatalf("Mask failed: %v", err)
	}
	for j := 0; j < 3; j++ {
		if out.At(0, j) != X.At(0, j) {
			t.Errorf("kept cell (0,%d) changed", j)
		}
	}
	if out.At(2, 1) != X.At(2, 1) {
		t.Error("kept cell (2,1) changed")
	}
}

func TestMaskDimensionErrors(t *testing.T) {
	X := testData()
	m, err := NewMasker(X, 7)
	if err != nil {
		t.Fatalf("NewMasker failed: %v", err)
	}

	cases := []struct {
		name string
		sel  *mat.Dense
	}{
		{"wrong rows", mat.NewDense(2, 3, nil)},
		{"wrong cols", mat.NewDense(4, 2, nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Mask(X, tc.sel); err == nil {
				t.Fatal("expected dimension error")
			} else {
				var de *errors.DimensionError
				if !errors.As(err, &de) {
					t.Errorf("expected *DimensionError, got %T", err)
				}
			}
		})
	}

	if _, err := m.MaskBroadcast(X, []float64{1, 0}); err == nil {
		t.Error("expected dimension error for short broadcast mask")
	}
}

func TestNewMaskerEmptyData(t *testing.T) {
	if _, err := NewMasker(&mat.Dense{}, 7); err == nil {
		t.Error("expected error for empty reference data")
	}
}

func TestMaskLargeBatchParallelPath(t *testing.T) {
	// Enough rows to cross the parallel threshold; every hidden cell must
	// still honor the observed-values-or-sentinel contract.
	rows := parallelThreshold * 2
	X := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		X.Set(i, 0, float64(i%5))
		X.Set(i, 1, float64(i%3))
	}
	m, err := NewMasker(X, 11)
	if err != nil {
		t.Fatalf("NewMasker failed: %v", err)
	}

	out, err := m.MaskBroadcast(X, []float64{0, 1})
	if err != nil {
		t.Fatalf("MaskBroadcast failed: %v", err)
	}
	for i := 0; i < rows; i++ {
		if out.At(i, 1) != X.At(i, 1) {
			t.Fatalf("kept column changed at row %d", i)
		}
		v := out.At(i, 0)
		if v == ExcludedValue {
			continue
		}
		if v < 0 || v > 4 || v != float64(int(v)) {
			t.Fatalf("row %d drew %v, not an observed value of feature 0", i, v)
		}
		if v == X.At(i, 0) {
			t.Fatalf("row %d kept its original hidden value without the sentinel", i)
		}
	}
}
