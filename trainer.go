package invase

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/goml-jp/invase/core/model"
	"github.com/goml-jp/invase/metrics"
	"github.com/goml-jp/invase/nn"
	"github.com/goml-jp/invase/pkg/errors"
	"github.com/goml-jp/invase/pkg/log"
)

// trainer runs the shared critic-training skeleton. The task variants plug
// in through two hooks: baselinePredict turns raw instances into regression
// anchors (the estimator's own output), and buildTarget produces a fresh
// masked-degradation importance target for a batch. Targets are ephemeral:
// rebuilt for every batch, consumed by one gradient step, discarded.
type trainer struct {
	name   string
	cfg    Config
	critic *nn.Network
	state  *model.StateManager
	rng    *rand.Rand
	logger log.Logger

	baselinePredict func(x *mat.Dense) (*mat.Dense, error)
	buildTarget     func(x, y *mat.Dense) (*mat.Dense, error)
}

// train fits the critic on x. Termination is either the epoch budget or
// early stopping; both leave the critic frozen and usable. Running out of
// epochs without the validation loss settling raises a ConvergenceWarning,
// never an error.
func (t *trainer) train(x *mat.Dense) error {
	n, cols := x.Dims()
	if n < 2 {
		return errors.NewValueError(t.name+".train", "at least 2 instances are required to hold out a validation split")
	}

	y, err := t.baselinePredict(x)
	if err != nil {
		return errors.Wrap(err, t.name+": baseline prediction failed")
	}
	if yRows, _ := y.Dims(); yRows != n {
		return errors.NewDimensionError(t.name+".train", n, yRows, 0)
	}

	// Instance-wise 90/10 train/validation split.
	perm := t.rng.Perm(n)
	nVal := n / 10
	if nVal == 0 {
		nVal = 1
	}
	valIdx := perm[:nVal]
	trainIdx := perm[nVal:]

	xTrain, yTrain := takeRows(x, trainIdx), takeRows(y, trainIdx)
	xVal, yVal := takeRows(x, valIdx), takeRows(y, valIdx)

	nTrain := len(trainIdx)
	batchSize := t.cfg.BatchSize
	if batchSize > nTrain {
		batchSize = nTrain
	}
	nBatches := (nTrain + batchSize - 1) / batchSize

	solver := nn.NewAdam(t.critic.Parameters(), t.cfg.LearningRate, t.cfg.L2Penalty)

	if err := t.state.BeginTraining(); err != nil {
		return errors.Wrap(err, t.name)
	}
	t.state.SetDimensions(cols, n)

	indices := make([]int, nTrain)
	for i := range indices {
		indices[i] = i
	}

	patience := 0
	bestValLoss := math.Inf(1)
	earlyStopped := false

	for epoch := 0; epoch < t.cfg.Epochs && !earlyStopped; epoch++ {
		t.rng.Shuffle(nTrain, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		var epochLoss float64
		for b := 0; b < nBatches; b++ {
			lo := b * batchSize
			hi := lo + batchSize
			if hi > nTrain {
				hi = nTrain
			}
			batch := indices[lo:hi]
			xb, yb := takeRows(xTrain, batch), takeRows(yTrain, batch)

			target, err := t.buildTarget(xb, yb)
			if err != nil {
				return errors.Wrap(err, t.name+": importance target construction failed")
			}

			pred := t.critic.Forward(xb, true)

			loss, err := metrics.MSEMatrix(pred, target)
			if err != nil {
				return err
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return errors.NewNumericalInstabilityError("importance_loss", []float64{loss}, epoch)
			}
			epochLoss += loss

			solver.ZeroGrad()
			t.critic.Backward(mseGrad(pred, target))
			solver.Step()
		}

		if epoch%t.cfg.EpochPrintInterval != 0 {
			continue
		}

		valTarget, err := t.buildTarget(xVal, yVal)
		if err != nil {
			return errors.Wrap(err, t.name+": validation target construction failed")
		}
		valPred := t.critic.Forward(xVal, false)
		valLoss, err := metrics.MSEMatrix(valPred, valTarget)
		if err != nil {
			return err
		}

		if valLoss < bestValLoss {
			bestValLoss = valLoss
			patience = 0
		} else {
			patience++
		}
		if patience > t.cfg.Patience && epoch > t.cfg.MinEpochs {
			earlyStopped = true
		}

		t.logger.Info("training progress",
			log.ModelNameKey, t.name,
			log.EpochKey, epoch,
			log.TrainLossKey, epochLoss/float64(nBatches),
			log.ValLossKey, valLoss,
			log.PatienceKey, patience,
		)
	}

	if !earlyStopped {
		errors.Warn(errors.NewConvergenceWarning(t.name, t.cfg.Epochs, bestValLoss))
	}

	return t.state.Freeze()
}

// mseGrad is the gradient of mean-squared-error with respect to pred.
func mseGrad(pred, target *mat.Dense) *mat.Dense {
	rows, cols := pred.Dims()
	grad := mat.NewDense(rows, cols, nil)
	grad.Sub(pred, target)
	grad.Scale(2/float64(rows*cols), grad)
	return grad
}

// takeRows extracts the given rows into a fresh matrix.
func takeRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

// toDense converts an arbitrary mat.Matrix into a *mat.Dense without copying
// when possible.
func toDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	rows, cols := m.Dims()
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, m.At(i, j))
		}
	}
	return d
}

// normalizeRows min-max normalizes every row of m in place over groups of
// width stride: columns are grouped per horizon so each (instance, horizon)
// slice lands in [0, 1] independently. stride==1 normalizes whole rows.
func normalizeRows(m *mat.Dense, horizons int) {
	rows, cols := m.Dims()
	if horizons == 1 {
		for i := 0; i < rows; i++ {
			row := m.RawRowView(i)
			minV := floats.Min(row)
			span := floats.Max(row) - minV + eps
			floats.AddConst(-minV, row)
			floats.Scale(1/span, row)
		}
		return
	}

	features := cols / horizons
	for i := 0; i < rows; i++ {
		for h := 0; h < horizons; h++ {
			minV := math.Inf(1)
			maxV := math.Inf(-1)
			for j := 0; j < features; j++ {
				v := m.At(i, j*horizons+h)
				if v < minV {
					minV = v
				}
				if v > maxV {
					maxV = v
				}
			}
			span := maxV - minV + eps
			for j := 0; j < features; j++ {
				c := j*horizons + h
				m.Set(i, c, (m.At(i, c)-minV)/span)
			}
		}
	}
}
