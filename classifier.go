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

const dropoutRate = 0.1

// Classifier explains classification (and generic point-prediction) models.
// The critic maps an instance straight to per-feature importance scores; it
// is trained once, at construction, against masked-degradation targets and
// frozen afterwards, so Explain is a pure forward pass.
type Classifier struct {
	predict       func(mat.Matrix) (*mat.Dense, error)
	probabilistic bool

	masker   *mask.Masker
	critic   *nn.Network
	state    *model.StateManager
	cfg      Config
	rng      *rand.Rand
	features int
	outputs  int // prediction width, pinned by the first estimator call
	logger   log.Logger
}

// NewClassifier wraps estimator and trains a critic on the instances in X.
// The estimator must implement ProbaPredictor or PointPredictor; when both
// are present, probabilities win. Training runs to completion before the
// constructor returns.
func NewClassifier(estimator any, X mat.Matrix, opts ...Option) (*Classifier, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewClassifier")
	}

	c := &Classifier{
		state:    model.NewStateManager(),
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, 0x1f)),
		features: cols,
		logger:   log.GetLoggerWithName("Classifier"),
	}

	var rawPredict func(mat.Matrix) (*mat.Dense, error)
	switch est := estimator.(type) {
	case ProbaPredictor:
		rawPredict = est.PredictProba
		c.probabilistic = true
	case PointPredictor:
		rawPredict = est.Predict
	default:
		return nil, errors.NewEstimatorContractError("classification", "PredictProba or Predict")
	}
	c.predict = func(x mat.Matrix) (*mat.Dense, error) {
		p, err := rawPredict(x)
		if err != nil {
			return nil, err
		}
		pr, pc := p.Dims()
		xr, _ := x.Dims()
		if pr != xr {
			return nil, errors.NewDimensionError("Classifier.predict", xr, pr, 0)
		}
		if c.outputs == 0 {
			c.outputs = pc
		} else if pc != c.outputs {
			return nil, errors.NewDimensionError("Classifier.predict", c.outputs, pc, 1)
		}
		return p, nil
	}

	masker, err := mask.NewMasker(X, cfg.Seed)
	if err != nil {
		return nil, err
	}
	c.masker = masker
	c.critic = c.buildCritic()

	c.logger.Info("training critic",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.StrategyKey, string(cfg.Strategy),
	)

	tr := &trainer{
		name:            "Classifier",
		cfg:             cfg,
		critic:          c.critic,
		state:           c.state,
		rng:             c.rng,
		logger:          c.logger,
		baselinePredict: func(x *mat.Dense) (*mat.Dense, error) { return c.predict(x) },
		buildTarget:     c.buildTarget,
	}
	if err := tr.train(toDense(X)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) buildCritic() *nn.Network {
	latent := c.cfg.CriticLatentDim
	return nn.NewNetwork(
		nn.NewDense(c.features, latent, c.rng),
		nn.NewReLU(),
		nn.NewDropout(dropoutRate, c.rng),
		nn.NewDense(latent, latent, c.rng),
		nn.NewReLU(),
		nn.NewDropout(dropoutRate, c.rng),
		nn.NewDense(latent, latent, c.rng),
		nn.NewReLU(),
		nn.NewDropout(dropoutRate, c.rng),
		nn.NewDense(latent, c.features, c.rng),
		nn.NewSigmoid(),
	)
}

// Explain scores every feature of every instance in X with one critic
// forward pass. Scores lie in (0, 1); higher means the estimator leans
// harder on the feature for that instance.
func (c *Classifier) Explain(X mat.Matrix) (*ImportanceTensor, error) {
	if err := c.state.RequireFrozen(); err != nil {
		return nil, errors.NewNotFittedError("Classifier", "Explain")
	}
	_, cols := X.Dims()
	if cols != c.features {
		return nil, errors.NewDimensionError("Classifier.Explain", c.features, cols, 1)
	}
	out := c.critic.Forward(toDense(X), false)
	return newImportanceTensor(out, c.features, 1), nil
}

// IsFrozen reports whether construction-time training has completed.
func (c *Classifier) IsFrozen() bool {
	return c.state.IsFrozen()
}

// degradation measures, per instance, how much the masked prediction p
// deviates from the unmasked baseline y. Probabilistic estimators are scored
// by cross-entropy against their own baseline distribution, point predictors
// by squared error.
func (c *Classifier) degradation(y, p *mat.Dense, i int) float64 {
	return c.degradationAt(y, p, i, i)
}

// buildTarget produces the importance regression target for one batch:
// every cell starts at zero, leave-one-out degradations land on the hidden
// feature by max-accumulation, interaction-tier degradations are added on
// with a small weight, and finally every row is min-max normalized.
func (c *Classifier) buildTarget(x, y *mat.Dense) (*mat.Dense, error) {
	rows, _ := x.Dims()
	target := mat.NewDense(rows, c.features, nil)

	var err error
	switch c.cfg.Strategy {
	case StrategyBatched:
		err = c.accumulateBatched(x, y, target)
	default:
		err = c.accumulateExhaustive(x, y, target)
	}
	if err != nil {
		return nil, err
	}

	normalizeRows(target, 1)
	return target, nil
}

func (c *Classifier) accumulateExhaustive(x, y, target *mat.Dense) error {
	rows, _ := x.Dims()

	looMasks, err := mask.LeaveOneOut(c.features)
	if err != nil {
		return err
	}
	for _, sel := range looMasks {
		hidden := hiddenPositions(sel)
		if len(hidden) == 0 {
			continue
		}
		masked, err := c.masker.MaskBroadcast(x, sel)
		if err != nil {
			return err
		}
		p, err := c.predict(masked)
		if err != nil {
			return errors.Wrap(err, "Classifier: estimator failed on masked batch")
		}
		j := hidden[0]
		for i := 0; i < rows; i++ {
			if d := c.degradation(y, p, i); d > target.At(i, j) {
				target.Set(i, j, d)
			}
		}
	}

	// Interaction tiers keep most features and hide small groups; their
	// degradations are spread over every hidden position with a small weight
	// so pairwise effects refine, never dominate, the leave-one-out signal.
	low := c.features - 3
	if low < 0 {
		low = 0
	}
	high := c.features - 1
	if high <= low {
		return nil
	}
	it, err := mask.NewIterator(c.features, low, high)
	if err != nil {
		return err
	}
	for {
		window, ok := it.NextWindow(rows)
		if !ok {
			return nil
		}
		for inner := 0; inner < c.cfg.InnerEpochs; inner++ {
			// Each instance gets its window mask with freshly shuffled bit
			// order, breaking any correlation between enumeration order and
			// instance order.
			shuffled := make([][]float64, rows)
			sel := mat.NewDense(rows, c.features, nil)
			for i := 0; i < rows; i++ {
				m := append([]float64(nil), window[i]...)
				c.rng.Shuffle(len(m), func(a, b int) { m[a], m[b] = m[b], m[a] })
				shuffled[i] = m
				sel.SetRow(i, m)
			}
			masked, err := c.masker.Mask(x, sel)
			if err != nil {
				return err
			}
			p, err := c.predict(masked)
			if err != nil {
				return errors.Wrap(err, "Classifier: estimator failed on masked batch")
			}
			for i := 0; i < rows; i++ {
				d := c.cfg.InteractionWeight * c.degradation(y, p, i)
				for _, j := range hiddenPositions(shuffled[i]) {
					target.Set(i, j, target.At(i, j)+d)
				}
			}
		}
	}
}

func (c *Classifier) accumulateBatched(x, y, target *mat.Dense) error {
	rows, _ := x.Dims()

	looMasks, err := mask.LeaveOneOut(c.features)
	if err != nil {
		return err
	}
	// Replicate the batch once per mask in the chunk so each estimator call
	// covers LOOChunkSize leave-one-out masks at a time.
	for lo := 0; lo < len(looMasks); lo += c.cfg.LOOChunkSize {
		hi := lo + c.cfg.LOOChunkSize
		if hi > len(looMasks) {
			hi = len(looMasks)
		}
		chunk := looMasks[lo:hi]

		big := mat.NewDense(rows*len(chunk), c.features, nil)
		sel := mat.NewDense(rows*len(chunk), c.features, nil)
		for m, msk := range chunk {
			for i := 0; i < rows; i++ {
				big.SetRow(m*rows+i, x.RawRowView(i))
				sel.SetRow(m*rows+i, msk)
			}
		}
		masked, err := c.masker.Mask(big, sel)
		if err != nil {
			return err
		}
		p, err := c.predict(masked)
		if err != nil {
			return errors.Wrap(err, "Classifier: estimator failed on masked batch")
		}
		for m, msk := range chunk {
			hidden := hiddenPositions(msk)
			if len(hidden) == 0 {
				continue
			}
			j := hidden[0]
			for i := 0; i < rows; i++ {
				d := c.degradationAt(y, p, i, m*rows+i)
				if d > target.At(i, j) {
					target.Set(i, j, d)
				}
			}
		}
	}

	// Random interaction subsets instead of full tier enumeration: for each
	// kept-feature count, a handful of sampled masks stand in for C(F, level).
	maxLevel := 3
	if maxLevel > c.features-1 {
		maxLevel = c.features - 1
	}
	for level := 2; level <= maxLevel; level++ {
		for s := 0; s < c.cfg.InteractionSamples; s++ {
			sel := sampleKeepMask(c.features, level, c.rng)
			masked, err := c.masker.MaskBroadcast(x, sel)
			if err != nil {
				return err
			}
			p, err := c.predict(masked)
			if err != nil {
				return errors.Wrap(err, "Classifier: estimator failed on masked batch")
			}
			hidden := hiddenPositions(sel)
			for i := 0; i < rows; i++ {
				d := c.cfg.InteractionWeight * c.degradation(y, p, i)
				for _, j := range hidden {
					target.Set(i, j, target.At(i, j)+d)
				}
			}
		}
	}
	return nil
}

// degradationAt compares baseline row yi against masked-prediction row pi.
func (c *Classifier) degradationAt(y, p *mat.Dense, yi, pi int) float64 {
	_, cols := y.Dims()
	var d float64
	if c.probabilistic {
		for j := 0; j < cols; j++ {
			d -= y.At(yi, j) * math.Log(p.At(pi, j)+eps)
		}
		return d
	}
	for j := 0; j < cols; j++ {
		diff := y.At(yi, j) - p.At(pi, j)
		d += diff * diff
	}
	return d
}

// hiddenPositions lists the zero bits of a selection mask.
func hiddenPositions(sel []float64) []int {
	var out []int
	for j, v := range sel {
		if v == 0 {
			out = append(out, j)
		}
	}
	return out
}

// sampleKeepMask draws a random mask with exactly keep ones.
func sampleKeepMask(n, keep int, rng *rand.Rand) []float64 {
	sel := make([]float64, n)
	for _, p := range rng.Perm(n)[:keep] {
		sel[p] = 1
	}
	return sel
}
