package invase

import (
	"github.com/goml-jp/invase/pkg/errors"
)

// eps protects logarithms and normalization denominators from vanishing
// values. Shared across every metric in the package.
const eps = 1e-8

// Strategy selects how the importance target builder covers the mask space.
type Strategy string

const (
	// StrategyExhaustive enumerates every leave-one-out mask and drains the
	// interaction tiers through batch-sized windows.
	StrategyExhaustive Strategy = "exhaustive"

	// StrategyBatched processes leave-one-out masks in fixed-size chunks with
	// replicated instances and samples a small number of random interaction
	// subsets per depth instead of enumerating them. It trades exactness for
	// far fewer estimator invocations.
	StrategyBatched Strategy = "batched"
)

// Config carries every training hyperparameter. The empirically chosen
// constants (interaction weight, chunk size, sample counts) are regular
// configuration fields so they can be overridden without touching the
// engine.
type Config struct {
	Epochs             int     // epoch budget
	InnerEpochs        int     // passes over each interaction-mask window
	Patience           int     // validation checks without improvement before stopping
	MinEpochs          int     // early stopping is ignored below this epoch floor
	EpochPrintInterval int     // validation/logging cadence in epochs
	BatchSize          int     // training mini-batch size
	LearningRate       float64 // Adam learning rate
	L2Penalty          float64 // Adam weight decay
	CriticLatentDim    int     // hidden width of the critic network
	Strategy           Strategy
	Seed               uint64 // seeds masking draws, shuffles and critic init

	// InteractionWeight scales each interaction-tier degradation before it
	// is accumulated onto the hidden features' importance.
	InteractionWeight float64
	// LOOChunkSize is the number of leave-one-out masks evaluated per
	// estimator invocation under StrategyBatched.
	LOOChunkSize int
	// InteractionSamples is the number of random subsets drawn per
	// interaction depth under StrategyBatched.
	InteractionSamples int
	// Samples caps the training pool for risk estimation; larger pools are
	// resampled down to this size.
	Samples int
}

func defaultConfig() Config {
	return Config{
		Epochs:             10000,
		InnerEpochs:        2,
		Patience:           5,
		MinEpochs:          100,
		EpochPrintInterval: 50,
		BatchSize:          300,
		LearningRate:       1e-3,
		L2Penalty:          1e-3,
		CriticLatentDim:    200,
		Strategy:           StrategyExhaustive,
		InteractionWeight:  1e-3,
		LOOChunkSize:       64,
		InteractionSamples: 10,
		Samples:            20000,
	}
}

func defaultRiskConfig() Config {
	cfg := defaultConfig()
	cfg.EpochPrintInterval = 10
	cfg.BatchSize = 500
	return cfg
}

func (c *Config) validate() error {
	if c.Strategy != StrategyExhaustive && c.Strategy != StrategyBatched {
		return errors.NewValidationError("strategy", "unknown target-builder strategy", string(c.Strategy))
	}
	if c.Epochs < 1 {
		return errors.NewValidationError("epochs", "must be positive", c.Epochs)
	}
	if c.InnerEpochs < 1 {
		return errors.NewValidationError("innerEpochs", "must be positive", c.InnerEpochs)
	}
	if c.BatchSize < 1 {
		return errors.NewValidationError("batchSize", "must be positive", c.BatchSize)
	}
	if c.EpochPrintInterval < 1 {
		return errors.NewValidationError("epochPrintInterval", "must be positive", c.EpochPrintInterval)
	}
	if c.LearningRate <= 0 {
		return errors.NewValidationError("learningRate", "must be positive", c.LearningRate)
	}
	if c.L2Penalty < 0 {
		return errors.NewValidationError("l2Penalty", "must be non-negative", c.L2Penalty)
	}
	if c.CriticLatentDim < 1 {
		return errors.NewValidationError("criticLatentDim", "must be positive", c.CriticLatentDim)
	}
	if c.LOOChunkSize < 1 {
		return errors.NewValidationError("looChunkSize", "must be positive", c.LOOChunkSize)
	}
	if c.InteractionSamples < 0 {
		return errors.NewValidationError("interactionSamples", "must be non-negative", c.InteractionSamples)
	}
	return nil
}

// Option is a functional option applied at explainer construction.
type Option func(*Config)

// WithEpochs sets the epoch budget.
func WithEpochs(n int) Option {
	return func(c *Config) { c.Epochs = n }
}

// WithInnerEpochs sets the number of passes over each interaction window.
func WithInnerEpochs(n int) Option {
	return func(c *Config) { c.InnerEpochs = n }
}

// WithPatience sets the early-stopping patience.
func WithPatience(n int) Option {
	return func(c *Config) { c.Patience = n }
}

// WithMinEpochs sets the epoch floor below which early stopping is ignored.
func WithMinEpochs(n int) Option {
	return func(c *Config) { c.MinEpochs = n }
}

// WithEpochPrintInterval sets the validation and logging cadence.
func WithEpochPrintInterval(n int) Option {
	return func(c *Config) { c.EpochPrintInterval = n }
}

// WithBatchSize sets the training mini-batch size.
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

// WithLearningRate sets the Adam learning rate.
func WithLearningRate(lr float64) Option {
	return func(c *Config) { c.LearningRate = lr }
}

// WithL2Penalty sets the Adam weight decay.
func WithL2Penalty(wd float64) Option {
	return func(c *Config) { c.L2Penalty = wd }
}

// WithCriticLatentDim sets the hidden width of the critic network.
func WithCriticLatentDim(n int) Option {
	return func(c *Config) { c.CriticLatentDim = n }
}

// WithStrategy selects the target-builder strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Config) { c.Strategy = s }
}

// WithSeed fixes the random source for masking draws, shuffles and critic
// initialization.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithInteractionWeight overrides the interaction-tier accumulation weight.
func WithInteractionWeight(w float64) Option {
	return func(c *Config) { c.InteractionWeight = w }
}

// WithLOOChunkSize overrides the leave-one-out chunk size of the batched
// strategy.
func WithLOOChunkSize(n int) Option {
	return func(c *Config) { c.LOOChunkSize = n }
}

// WithInteractionSamples overrides the per-depth subset count of the batched
// strategy.
func WithInteractionSamples(n int) Option {
	return func(c *Config) { c.InteractionSamples = n }
}

// WithSamples caps the risk-estimation training pool.
func WithSamples(n int) Option {
	return func(c *Config) { c.Samples = n }
}
