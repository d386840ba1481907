package invase

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/pkg/errors"
	"github.com/goml-jp/invase/pkg/log"
)

// CV is a cross-validation ensemble of classification explainers: one critic
// per fold of a shuffled K-fold split, each trained on the instances outside
// its fold. Explain averages the per-fold importance scores, damping the
// variance a single critic inherits from its masking draws.
type CV struct {
	explainers []*Classifier
	folds      int
	features   int
	logger     log.Logger
}

// NewCV trains folds explainers over a shuffled K-fold split of X. Fold
// training is sequential and fail-fast: the first fold that cannot train
// aborts construction.
func NewCV(estimator any, X mat.Matrix, folds int, opts ...Option) (*CV, error) {
	if folds < 2 {
		return nil, errors.NewValidationError("folds", "cross validation requires at least 2 folds", folds)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewCV")
	}
	if folds > rows {
		return nil, errors.NewValidationError("folds", "cannot exceed the number of instances", folds)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cv := &CV{
		folds:    folds,
		features: cols,
		logger:   log.GetLoggerWithName("CV"),
	}

	Xd := toDense(X)
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x3f))
	perm := rng.Perm(rows)

	for fold := 0; fold < folds; fold++ {
		trainIdx := splitFold(perm, folds, fold)
		cv.logger.Info("training fold",
			log.FoldKey, fold,
			log.SamplesKey, len(trainIdx),
		)
		foldOpts := append(append([]Option{}, opts...), WithSeed(cfg.Seed+uint64(fold)+1))
		expl, err := NewClassifier(estimator, takeRows(Xd, trainIdx), foldOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "CV: fold %d failed", fold)
		}
		cv.explainers = append(cv.explainers, expl)
	}
	return cv, nil
}

// splitFold returns the shuffled indices outside fold number fold. The first
// len(perm) % folds folds absorb the remainder, one extra instance each.
func splitFold(perm []int, folds, fold int) []int {
	n := len(perm)
	size := n / folds
	rem := n % folds

	lo := fold*size + min(fold, rem)
	hi := lo + size
	if fold < rem {
		hi++
	}

	out := make([]int, 0, n-(hi-lo))
	out = append(out, perm[:lo]...)
	out = append(out, perm[hi:]...)
	return out
}

// Explain averages the fold explainers' importance scores for X.
func (cv *CV) Explain(X mat.Matrix) (*ImportanceTensor, error) {
	tensors := make([]*ImportanceTensor, 0, len(cv.explainers))
	for fold, expl := range cv.explainers {
		t, err := expl.Explain(X)
		if err != nil {
			return nil, errors.Wrapf(err, "CV: fold %d failed", fold)
		}
		tensors = append(tensors, t)
	}
	return meanTensors(tensors), nil
}

// Folds returns the number of fold explainers in the ensemble.
func (cv *CV) Folds() int {
	return cv.folds
}
