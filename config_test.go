package invase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goml-jp/invase/pkg/errors"
)

func TestConfigDefaults(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.validate())
	require.Equal(t, StrategyExhaustive, cfg.Strategy)

	risk := defaultRiskConfig()
	require.NoError(t, risk.validate())
	require.Equal(t, 10, risk.EpochPrintInterval)
	require.Equal(t, 500, risk.BatchSize)
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
	}{
		{"unknown strategy", WithStrategy("greedy")},
		{"zero epochs", WithEpochs(0)},
		{"zero inner epochs", WithInnerEpochs(0)},
		{"zero batch size", WithBatchSize(0)},
		{"zero print interval", WithEpochPrintInterval(0)},
		{"zero learning rate", WithLearningRate(0)},
		{"negative l2 penalty", WithL2Penalty(-0.1)},
		{"zero latent dim", WithCriticLatentDim(0)},
		{"zero loo chunk", WithLOOChunkSize(0)},
		{"negative interaction samples", WithInteractionSamples(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.opt(&cfg)
			err := cfg.validate()
			require.Error(t, err)
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
		})
	}
}

func TestOptionsApply(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []Option{
		WithEpochs(5),
		WithInnerEpochs(3),
		WithPatience(7),
		WithMinEpochs(2),
		WithEpochPrintInterval(4),
		WithBatchSize(16),
		WithLearningRate(0.01),
		WithL2Penalty(0.02),
		WithCriticLatentDim(64),
		WithStrategy(StrategyBatched),
		WithSeed(9),
		WithInteractionWeight(0.5),
		WithLOOChunkSize(8),
		WithInteractionSamples(6),
		WithSamples(1000),
	} {
		opt(&cfg)
	}

	require.Equal(t, 5, cfg.Epochs)
	require.Equal(t, 3, cfg.InnerEpochs)
	require.Equal(t, 7, cfg.Patience)
	require.Equal(t, 2, cfg.MinEpochs)
	require.Equal(t, 4, cfg.EpochPrintInterval)
	require.Equal(t, 16, cfg.BatchSize)
	require.Equal(t, 0.01, cfg.LearningRate)
	require.Equal(t, 0.02, cfg.L2Penalty)
	require.Equal(t, 64, cfg.CriticLatentDim)
	require.Equal(t, StrategyBatched, cfg.Strategy)
	require.Equal(t, uint64(9), cfg.Seed)
	require.Equal(t, 0.5, cfg.InteractionWeight)
	require.Equal(t, 8, cfg.LOOChunkSize)
	require.Equal(t, 6, cfg.InteractionSamples)
	require.Equal(t, 1000, cfg.Samples)
}
