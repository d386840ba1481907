package invase

import (
	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
)

// TaskType names the kind of model being explained.
type TaskType string

const (
	// TaskClassification explains classifiers and generic point predictors.
	TaskClassification TaskType = "classification"
	// TaskRiskEstimation explains time-to-event models evaluated at a set of
	// horizons.
	TaskRiskEstimation TaskType = "risk_estimation"
)

// Explainer is the common surface of every trained variant: a frozen critic
// scoring the features of previously unseen instances.
type Explainer interface {
	Explain(X mat.Matrix) (*ImportanceTensor, error)
}

// Params selects the explainer variant built by New. Hyperparameters beyond
// the variant choice travel as functional options.
type Params struct {
	// TaskType selects between classification and risk estimation.
	TaskType TaskType
	// Folds above 1 trains a cross-validation ensemble instead of a single
	// explainer. Only classification supports folding. Zero means 1.
	Folds int
	// EvalTimes are the risk-estimation horizons. Required for
	// TaskRiskEstimation, rejected otherwise.
	EvalTimes []float64
}

// New builds and trains the explainer variant described by p. The estimator's
// prediction surface is probed with type assertions; an estimator exposing
// none of the required methods fails with an EstimatorContractError.
func New(estimator any, X mat.Matrix, p Params, opts ...Option) (Explainer, error) {
	folds := p.Folds
	if folds == 0 {
		folds = 1
	}
	if folds < 0 {
		return nil, errors.NewValidationError("folds", "must be non-negative", p.Folds)
	}

	switch p.TaskType {
	case TaskClassification:
		if len(p.EvalTimes) > 0 {
			return nil, errors.NewValidationError("evalTimes", "evaluation horizons only apply to risk estimation", p.EvalTimes)
		}
		if folds > 1 {
			return NewCV(estimator, X, folds, opts...)
		}
		return NewClassifier(estimator, X, opts...)

	case TaskRiskEstimation:
		if folds > 1 {
			return nil, errors.NewValidationError("folds", "cross validation is only supported for classification", p.Folds)
		}
		return NewRiskEstimator(estimator, X, p.EvalTimes, opts...)

	default:
		return nil, errors.NewValidationError("taskType", "unknown task type", string(p.TaskType))
	}
}
