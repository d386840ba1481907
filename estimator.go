package invase

import (
	"gonum.org/v1/gonum/mat"
)

// The wrapped estimator is an opaque collaborator. It only needs to expose
// one of the prediction surfaces below; capability is probed with type
// assertions at construction time and never changes afterwards. The
// estimator is treated as read-only: the library never fits or mutates it.

// PointPredictor produces one point prediction per instance.
type PointPredictor interface {
	Predict(X mat.Matrix) (*mat.Dense, error)
}

// ProbaPredictor produces class probabilities per instance. When both
// surfaces are available, probabilities take priority over point
// predictions.
type ProbaPredictor interface {
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}

// RiskPredictor produces one risk estimate per instance and evaluation
// horizon: the returned matrix has one column per entry of times, in the
// same order.
type RiskPredictor interface {
	PredictAt(X mat.Matrix, times []float64) (*mat.Dense, error)
}
