// Package nn implements the small feed-forward networks used as critics:
// dense layers, elementwise activations, inverted dropout, and an Adam
// optimizer with decoupled L2 penalty. Everything operates on *mat.Dense
// batches (instances × units) and keeps the forward caches needed for
// backpropagation, so a Layer instance is not safe for concurrent training.
package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Layer is one differentiable stage of a network. Forward consumes a batch
// and caches whatever Backward needs; Backward consumes the loss gradient
// with respect to the layer output and returns it with respect to the input.
type Layer interface {
	Forward(x *mat.Dense, training bool) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
}

// Parameter pairs a trainable tensor with its gradient accumulator.
type Parameter struct {
	Value *mat.Dense
	Grad  *mat.Dense
}

// paramLayer is implemented by layers carrying trainable parameters.
type paramLayer interface {
	Layer
	parameters() []*Parameter
}

// Dense is a fully connected layer: y = x·W + b.
type Dense struct {
	w, b         *mat.Dense // w: in×out, b: 1×out
	gradW, gradB *mat.Dense
	input        *mat.Dense
}

// NewDense creates a dense layer with uniform(-1/√in, 1/√in) initialization
// for both weights and bias.
func NewDense(in, out int, rng *rand.Rand) *Dense {
	limit := 1.0 / math.Sqrt(float64(in))
	w := mat.NewDense(in, out, nil)
	for i := 0; i < in; i++ {
		for j := 0; j < out; j++ {
			w.Set(i, j, (2*rng.Float64()-1)*limit)
		}
	}
	b := mat.NewDense(1, out, nil)
	for j := 0; j < out; j++ {
		b.Set(0, j, (2*rng.Float64()-1)*limit)
	}
	return &Dense{
		w:     w,
		b:     b,
		gradW: mat.NewDense(in, out, nil),
		gradB: mat.NewDense(1, out, nil),
	}
}

// Forward computes x·W + b with the bias broadcast across rows.
func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	if training {
		d.input = x
	}
	rows, _ := x.Dims()
	_, out := d.w.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, d.w)
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+d.b.At(0, j))
		}
	}
	return y
}

// Backward accumulates parameter gradients from the cached forward input and
// propagates the gradient to the layer input.
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	d.gradW.Mul(d.input.T(), grad)

	rows, out := grad.Dims()
	for j := 0; j < out; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += grad.At(i, j)
		}
		d.gradB.Set(0, j, sum)
	}

	in, _ := d.w.Dims()
	gradIn := mat.NewDense(rows, in, nil)
	gradIn.Mul(grad, d.w.T())
	return gradIn
}

func (d *Dense) parameters() []*Parameter {
	return []*Parameter{
		{Value: d.w, Grad: d.gradW},
		{Value: d.b, Grad: d.gradB},
	}
}

// ReLU is the rectified linear activation.
type ReLU struct {
	input *mat.Dense
}

func NewReLU() *ReLU { return &ReLU{} }

func (r *ReLU) Forward(x *mat.Dense, training bool) *mat.Dense {
	if training {
		r.input = x
	}
	out := mat.DenseCopyOf(x)
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, out)
	return out
}

func (r *ReLU) Backward(grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	rows, cols := out.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if r.input.At(i, j) <= 0 {
				out.Set(i, j, 0)
			}
		}
	}
	return out
}

// LeakyReLU passes negative inputs scaled by a small slope.
type LeakyReLU struct {
	slope float64
	input *mat.Dense
}

func NewLeakyReLU(slope float64) *LeakyReLU { return &LeakyReLU{slope: slope} }

func (l *LeakyReLU) Forward(x *mat.Dense, training bool) *mat.Dense {
	if training {
		l.input = x
	}
	out := mat.DenseCopyOf(x)
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return l.slope * v
		}
		return v
	}, out)
	return out
}

func (l *LeakyReLU) Backward(grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	rows, cols := out.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if l.input.At(i, j) < 0 {
				out.Set(i, j, out.At(i, j)*l.slope)
			}
		}
	}
	return out
}

// Sigmoid squashes outputs into (0, 1).
type Sigmoid struct {
	output *mat.Dense
}

func NewSigmoid() *Sigmoid { return &Sigmoid{} }

func (s *Sigmoid) Forward(x *mat.Dense, training bool) *mat.Dense {
	out := mat.DenseCopyOf(x)
	out.Apply(func(_, _ int, v float64) float64 {
		return 1 / (1 + math.Exp(-v))
	}, out)
	if training {
		s.output = out
	}
	return out
}

func (s *Sigmoid) Backward(grad *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(grad)
	rows, cols := out.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			y := s.output.At(i, j)
			out.Set(i, j, out.At(i, j)*y*(1-y))
		}
	}
	return out
}

// Dropout zeroes a random fraction of activations during training, scaling
// the survivors by 1/(1-rate) so inference needs no correction.
type Dropout struct {
	rate float64
	rng  *rand.Rand
	keep *mat.Dense
}

func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{rate: rate, rng: rng}
}

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.rate <= 0 {
		return x
	}
	rows, cols := x.Dims()
	scale := 1 / (1 - d.rate)
	d.keep = mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if d.rng.Float64() >= d.rate {
				d.keep.Set(i, j, scale)
				out.Set(i, j, x.At(i, j)*scale)
			}
		}
	}
	return out
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.keep == nil {
		return grad
	}
	out := mat.DenseCopyOf(grad)
	out.MulElem(out, d.keep)
	return out
}
