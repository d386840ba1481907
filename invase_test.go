package invase

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
)

// probaModel predicts class 1 with probability sigmoid(weight * x0); the
// other features are ignored, so only feature 0 should matter.
type probaModel struct {
	weight float64
}

func (m probaModel) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := 1 / (1 + math.Exp(-m.weight*X.At(i, 0)))
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// pointModel predicts x0 - x1 as a single output column.
type pointModel struct{}

func (pointModel) Predict(X mat.Matrix) (*mat.Dense, error) {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, X.At(i, 0)-X.At(i, 1))
	}
	return out, nil
}

// riskModel's risk at horizon t is sigmoid(x0 - t).
type riskModel struct{}

func (riskModel) PredictAt(X mat.Matrix, times []float64) (*mat.Dense, error) {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(times), nil)
	for i := 0; i < rows; i++ {
		for t, horizon := range times {
			out.Set(i, t, 1/(1+math.Exp(-(X.At(i, 0)-horizon))))
		}
	}
	return out, nil
}

type noContractModel struct{}

// randomData draws instances from a small discrete value grid so masking
// substitutions have a real empirical distribution to sample from.
func randomData(rows, cols int, seed uint64) *mat.Dense {
	rng := rand.New(rand.NewPCG(seed, 0))
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, float64(rng.IntN(5)-2))
		}
	}
	return out
}

// fastOpts keeps construction-time training short enough for tests.
func fastOpts(extra ...Option) []Option {
	opts := []Option{
		WithEpochs(60),
		WithMinEpochs(5),
		WithPatience(2),
		WithEpochPrintInterval(10),
		WithBatchSize(20),
		WithCriticLatentDim(16),
		WithSeed(42),
	}
	return append(opts, extra...)
}

func TestNewDispatchesClassification(t *testing.T) {
	X := randomData(40, 4, 1)
	expl, err := New(probaModel{weight: 4}, X, Params{TaskType: TaskClassification}, fastOpts()...)
	require.NoError(t, err)
	require.IsType(t, &Classifier{}, expl)
}

func TestNewDispatchesCV(t *testing.T) {
	X := randomData(40, 4, 1)
	expl, err := New(probaModel{weight: 4}, X, Params{TaskType: TaskClassification, Folds: 2}, fastOpts()...)
	require.NoError(t, err)
	require.IsType(t, &CV{}, expl)
}

func TestNewDispatchesRiskEstimation(t *testing.T) {
	X := randomData(30, 3, 2)
	expl, err := New(riskModel{}, X, Params{
		TaskType:  TaskRiskEstimation,
		EvalTimes: []float64{0.5, 1.5},
	}, fastOpts()...)
	require.NoError(t, err)
	require.IsType(t, &RiskEstimator{}, expl)
}

func TestNewValidation(t *testing.T) {
	X := randomData(20, 3, 3)

	cases := []struct {
		name string
		est  any
		p    Params
	}{
		{"unknown task", probaModel{}, Params{TaskType: "ranking"}},
		{"eval times on classification", probaModel{}, Params{TaskType: TaskClassification, EvalTimes: []float64{1}}},
		{"folds on risk estimation", riskModel{}, Params{TaskType: TaskRiskEstimation, EvalTimes: []float64{1}, Folds: 3}},
		{"negative folds", probaModel{}, Params{TaskType: TaskClassification, Folds: -1}},
		{"missing eval times", riskModel{}, Params{TaskType: TaskRiskEstimation}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.est, X, tc.p, fastOpts()...)
			require.Error(t, err)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
		})
	}
}

func TestNewRejectsContractlessEstimator(t *testing.T) {
	X := randomData(20, 3, 4)
	_, err := New(noContractModel{}, X, Params{TaskType: TaskClassification}, fastOpts()...)
	require.Error(t, err)
	var ce *errors.EstimatorContractError
	require.True(t, errors.As(err, &ce), "expected *EstimatorContractError, got %T", err)

	_, err = New(noContractModel{}, X, Params{TaskType: TaskRiskEstimation, EvalTimes: []float64{1}}, fastOpts()...)
	require.Error(t, err)
	require.True(t, errors.As(err, &ce))
}
