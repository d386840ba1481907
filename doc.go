// Package invase provides instance-wise feature importance for black-box
// predictive models, based on the INVASE algorithm.
//
// The library never inspects or trains the wrapped estimator. Instead it
// measures how much the estimator's loss degrades when feature subsets are
// hidden (replaced by draws from each feature's observed value distribution)
// and regresses a small feed-forward network, the critic, onto those
// degradation signals. Once trained, the critic scores every feature of an
// instance with a single forward pass.
//
// Two task variants share the training skeleton: Classifier produces an
// [instances × features] importance matrix, RiskEstimator produces an
// [instances × features × horizons] tensor for time-to-event models
// evaluated at a set of horizons. CV trains one classifier per fold of a
// K-fold split and averages their outputs.
//
// Basic usage:
//
//	expl, err := invase.NewClassifier(model, X)
//	if err != nil {
//		...
//	}
//	imp, err := expl.Explain(XTest)
package invase
