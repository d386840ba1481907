package invase

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
)

func TestCVTrainsOneExplainerPerFold(t *testing.T) {
	X := randomData(40, 4, 50)
	cv, err := NewCV(probaModel{weight: 4}, X, 3, fastOpts()...)
	require.NoError(t, err)
	require.Equal(t, 3, cv.Folds())
	require.Len(t, cv.explainers, 3)
	for _, e := range cv.explainers {
		require.True(t, e.IsFrozen())
	}
}

func TestCVExplainIsFoldMean(t *testing.T) {
	X := randomData(40, 4, 51)
	cv, err := NewCV(probaModel{weight: 4}, X, 2, fastOpts()...)
	require.NoError(t, err)

	got, err := cv.Explain(X)
	require.NoError(t, err)

	var tensors []*ImportanceTensor
	for _, e := range cv.explainers {
		t0, err := e.Explain(X)
		require.NoError(t, err)
		tensors = append(tensors, t0)
	}
	want := meanTensors(tensors)
	require.True(t, mat.EqualApprox(got.Matrix(), want.Matrix(), 1e-12),
		"CV output must be the elementwise mean of the fold outputs")
}

func TestCVExplainShape(t *testing.T) {
	X := randomData(40, 4, 52)
	cv, err := NewCV(probaModel{weight: 4}, X, 2, fastOpts()...)
	require.NoError(t, err)

	imp, err := cv.Explain(randomData(7, 4, 53))
	require.NoError(t, err)
	n, features, horizons := imp.Dims()
	require.Equal(t, 7, n)
	require.Equal(t, 4, features)
	require.Equal(t, 1, horizons)
}

func TestCVValidation(t *testing.T) {
	X := randomData(10, 3, 54)

	_, err := NewCV(probaModel{weight: 4}, X, 1, fastOpts()...)
	require.Error(t, err)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = NewCV(probaModel{weight: 4}, X, 11, fastOpts()...)
	require.Error(t, err)
	require.True(t, errors.As(err, &ve))
}

func TestCVFailsFastOnEstimatorContract(t *testing.T) {
	X := randomData(20, 3, 55)
	_, err := NewCV(noContractModel{}, X, 2, fastOpts()...)
	require.Error(t, err)
	var ce *errors.EstimatorContractError
	require.True(t, errors.As(err, &ce), "expected *EstimatorContractError, got %T", err)
}

func TestSplitFold(t *testing.T) {
	perm := []int{4, 2, 0, 3, 1, 6, 5}

	// 7 instances over 3 folds: fold sizes 3, 2, 2.
	seen := make(map[int]int)
	for fold := 0; fold < 3; fold++ {
		train := splitFold(perm, 3, fold)
		heldOut := 7 - len(train)
		if fold == 0 {
			require.Equal(t, 3, heldOut)
		} else {
			require.Equal(t, 2, heldOut)
		}
		inTrain := make(map[int]bool)
		for _, idx := range train {
			inTrain[idx] = true
		}
		for _, idx := range perm {
			if !inTrain[idx] {
				seen[idx]++
			}
		}
	}
	// Every instance is held out by exactly one fold.
	require.Len(t, seen, 7)
	for idx, c := range seen {
		require.Equal(t, 1, c, "instance %d held out %d times", idx, c)
	}
}
