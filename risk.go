package invase

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/core/model"
	"github.com/goml-jp/invase/mask"
	"github.com/goml-jp/invase/nn"
	"github.com/goml-jp/invase/pkg/errors"
	"github.com/goml-jp/invase/pkg/log"
)

// RiskEstimator explains time-to-event models evaluated at a fixed set of
// horizons. The critic emits features×horizons scores per instance through a
// linear head; each (instance, horizon) slice of the training target is
// normalized independently, so horizons never compete with each other.
type RiskEstimator struct {
	predict func(mat.Matrix) (*mat.Dense, error)
	times   []float64

	masker   *mask.Masker
	critic   *nn.Network
	state    *model.StateManager
	cfg      Config
	rng      *rand.Rand
	features int
	horizons int
	logger   log.Logger
}

// NewRiskEstimator wraps a RiskPredictor and trains a critic on the
// instances in X, scoring degradation at every horizon in evalTimes. Pools
// larger than the configured sample cap are resampled down with replacement
// before training.
func NewRiskEstimator(estimator any, X mat.Matrix, evalTimes []float64, opts ...Option) (*RiskEstimator, error) {
	cfg := defaultRiskConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(evalTimes) == 0 {
		return nil, errors.NewValidationError("evalTimes", "risk estimation requires at least one evaluation horizon", evalTimes)
	}
	if cfg.Samples < 1 {
		return nil, errors.NewValidationError("samples", "must be positive", cfg.Samples)
	}

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewRiskEstimator")
	}

	rp, ok := estimator.(RiskPredictor)
	if !ok {
		return nil, errors.NewEstimatorContractError("risk_estimation", "PredictAt")
	}

	times := make([]float64, len(evalTimes))
	copy(times, evalTimes)

	r := &RiskEstimator{
		times:    times,
		state:    model.NewStateManager(),
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, 0x2f)),
		features: cols,
		horizons: len(times),
		logger:   log.GetLoggerWithName("RiskEstimator"),
	}
	r.predict = func(x mat.Matrix) (*mat.Dense, error) {
		p, err := rp.PredictAt(x, r.times)
		if err != nil {
			return nil, err
		}
		pr, pc := p.Dims()
		xr, _ := x.Dims()
		if pr != xr || pc != r.horizons {
			return nil, errors.NewDimensionError("RiskEstimator.predict", r.horizons, pc, 1)
		}
		return p, nil
	}

	masker, err := mask.NewMasker(X, cfg.Seed)
	if err != nil {
		return nil, err
	}
	r.masker = masker
	r.critic = r.buildCritic()

	pool := toDense(X)
	if rows > cfg.Samples {
		pool = resample(pool, cfg.Samples, r.rng)
	}

	r.logger.Info("training critic",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.HorizonsKey, r.horizons,
		log.StrategyKey, string(cfg.Strategy),
	)

	tr := &trainer{
		name:            "RiskEstimator",
		cfg:             cfg,
		critic:          r.critic,
		state:           r.state,
		rng:             r.rng,
		logger:          r.logger,
		baselinePredict: func(x *mat.Dense) (*mat.Dense, error) { return r.predict(x) },
		buildTarget:     r.buildTarget,
	}
	if err := tr.train(pool); err != nil {
		return nil, err
	}
	return r, nil
}

// buildCritic stacks plain LeakyReLU layers with a linear head. Unlike the
// classification critic there is no dropout.
func (r *RiskEstimator) buildCritic() *nn.Network {
	latent := r.cfg.CriticLatentDim
	return nn.NewNetwork(
		nn.NewDense(r.features, latent, r.rng),
		nn.NewLeakyReLU(0.01),
		nn.NewDense(latent, latent, r.rng),
		nn.NewLeakyReLU(0.01),
		nn.NewDense(latent, latent, r.rng),
		nn.NewLeakyReLU(0.01),
		nn.NewDense(latent, r.features*r.horizons, r.rng),
	)
}

// EvalTimes returns the evaluation horizons, in the order scores are laid
// out along the tensor's horizon axis.
func (r *RiskEstimator) EvalTimes() []float64 {
	out := make([]float64, len(r.times))
	copy(out, r.times)
	return out
}

// Explain scores every (feature, horizon) pair of every instance in X.
func (r *RiskEstimator) Explain(X mat.Matrix) (*ImportanceTensor, error) {
	if err := r.state.RequireFrozen(); err != nil {
		return nil, errors.NewNotFittedError("RiskEstimator", "Explain")
	}
	_, cols := X.Dims()
	if cols != r.features {
		return nil, errors.NewDimensionError("RiskEstimator.Explain", r.features, cols, 1)
	}
	out := r.critic.Forward(toDense(X), false)
	return newImportanceTensor(out, r.features, r.horizons), nil
}

// IsFrozen reports whether construction-time training has completed.
func (r *RiskEstimator) IsFrozen() bool {
	return r.state.IsFrozen()
}

// degradationAt scores how far the masked risk curve pi drifts from the
// baseline curve yi at horizon t. The blend of squared, absolute and
// log-likelihood terms keeps the signal informative both near 0/1 risks and
// in the middle of the range.
func (r *RiskEstimator) degradationAt(y, p *mat.Dense, yi, pi, t int) float64 {
	base := y.At(yi, t)
	masked := p.At(pi, t)
	diff := masked - base
	return diff*diff + math.Abs(diff) - base*math.Log(masked+eps)
}

// buildTarget produces the [batch × features·horizons] regression target:
// leave-one-out degradations land per horizon on the hidden feature by
// max-accumulation, interaction-tier degradations are added with a small
// weight, and each (instance, horizon) slice is normalized independently.
func (r *RiskEstimator) buildTarget(x, y *mat.Dense) (*mat.Dense, error) {
	rows, _ := x.Dims()
	target := mat.NewDense(rows, r.features*r.horizons, nil)

	var err error
	switch r.cfg.Strategy {
	case StrategyBatched:
		err = r.accumulateBatched(x, y, target)
	default:
		err = r.accumulateExhaustive(x, y, target)
	}
	if err != nil {
		return nil, err
	}

	normalizeRows(target, r.horizons)
	return target, nil
}

func (r *RiskEstimator) accumulateExhaustive(x, y, target *mat.Dense) error {
	rows, _ := x.Dims()

	looMasks, err := mask.LeaveOneOut(r.features)
	if err != nil {
		return err
	}
	for _, sel := range looMasks {
		hidden := hiddenPositions(sel)
		if len(hidden) == 0 {
			continue
		}
		masked, err := r.masker.MaskBroadcast(x, sel)
		if err != nil {
			return err
		}
		p, err := r.predict(masked)
		if err != nil {
			return errors.Wrap(err, "RiskEstimator: estimator failed on masked batch")
		}
		j := hidden[0]
		for i := 0; i < rows; i++ {
			for t := 0; t < r.horizons; t++ {
				col := j*r.horizons + t
				if d := r.degradationAt(y, p, i, i, t); d > target.At(i, col) {
					target.Set(i, col, d)
				}
			}
		}
	}

	low := r.features - 2
	if low < 0 {
		low = 0
	}
	high := r.features - 1
	if high <= low {
		return nil
	}
	it, err := mask.NewIterator(r.features, low, high)
	if err != nil {
		return err
	}
	for {
		window, ok := it.NextWindow(rows)
		if !ok {
			return nil
		}
		for inner := 0; inner < r.cfg.InnerEpochs; inner++ {
			shuffled := make([][]float64, rows)
			sel := mat.NewDense(rows, r.features, nil)
			for i := 0; i < rows; i++ {
				m := append([]float64(nil), window[i]...)
				r.rng.Shuffle(len(m), func(a, b int) { m[a], m[b] = m[b], m[a] })
				shuffled[i] = m
				sel.SetRow(i, m)
			}
			masked, err := r.masker.Mask(x, sel)
			if err != nil {
				return err
			}
			p, err := r.predict(masked)
			if err != nil {
				return errors.Wrap(err, "RiskEstimator: estimator failed on masked batch")
			}
			for i := 0; i < rows; i++ {
				for t := 0; t < r.horizons; t++ {
					d := r.cfg.InteractionWeight * r.degradationAt(y, p, i, i, t)
					for _, j := range hiddenPositions(shuffled[i]) {
						col := j*r.horizons + t
						target.Set(i, col, target.At(i, col)+d)
					}
				}
			}
		}
	}
}

func (r *RiskEstimator) accumulateBatched(x, y, target *mat.Dense) error {
	rows, _ := x.Dims()

	looMasks, err := mask.LeaveOneOut(r.features)
	if err != nil {
		return err
	}
	for lo := 0; lo < len(looMasks); lo += r.cfg.LOOChunkSize {
		hi := lo + r.cfg.LOOChunkSize
		if hi > len(looMasks) {
			hi = len(looMasks)
		}
		chunk := looMasks[lo:hi]

		big := mat.NewDense(rows*len(chunk), r.features, nil)
		sel := mat.NewDense(rows*len(chunk), r.features, nil)
		for m, msk := range chunk {
			for i := 0; i < rows; i++ {
				big.SetRow(m*rows+i, x.RawRowView(i))
				sel.SetRow(m*rows+i, msk)
			}
		}
		masked, err := r.masker.Mask(big, sel)
		if err != nil {
			return err
		}
		p, err := r.predict(masked)
		if err != nil {
			return errors.Wrap(err, "RiskEstimator: estimator failed on masked batch")
		}
		for m, msk := range chunk {
			hidden := hiddenPositions(msk)
			if len(hidden) == 0 {
				continue
			}
			j := hidden[0]
			for i := 0; i < rows; i++ {
				for t := 0; t < r.horizons; t++ {
					col := j*r.horizons + t
					if d := r.degradationAt(y, p, i, m*rows+i, t); d > target.At(i, col) {
						target.Set(i, col, d)
					}
				}
			}
		}
	}

	maxLevel := 3
	if maxLevel > r.features-1 {
		maxLevel = r.features - 1
	}
	for level := 2; level <= maxLevel; level++ {
		for s := 0; s < r.cfg.InteractionSamples; s++ {
			sel := sampleKeepMask(r.features, level, r.rng)
			masked, err := r.masker.MaskBroadcast(x, sel)
			if err != nil {
				return err
			}
			p, err := r.predict(masked)
			if err != nil {
				return errors.Wrap(err, "RiskEstimator: estimator failed on masked batch")
			}
			hidden := hiddenPositions(sel)
			for i := 0; i < rows; i++ {
				for t := 0; t < r.horizons; t++ {
					d := r.cfg.InteractionWeight * r.degradationAt(y, p, i, i, t)
					for _, j := range hidden {
						col := j*r.horizons + t
						target.Set(i, col, target.At(i, col)+d)
					}
				}
			}
		}
	}
	return nil
}

// resample draws size rows with replacement.
func resample(x *mat.Dense, size int, rng *rand.Rand) *mat.Dense {
	rows, _ := x.Dims()
	idx := make([]int, size)
	for i := range idx {
		idx[i] = rng.IntN(rows)
	}
	return takeRows(x, idx)
}
