package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam is the Adam optimizer with an L2 weight penalty folded into the
// gradient before the moment updates.
type Adam struct {
	params      []*Parameter
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	t int
	m []*mat.Dense
	v []*mat.Dense
}

// NewAdam creates an optimizer over params with the standard moment decays
// (0.9, 0.999).
func NewAdam(params []*Parameter, lr, weightDecay float64) *Adam {
	a := &Adam{
		params:      params,
		lr:          lr,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: weightDecay,
	}
	a.m = make([]*mat.Dense, len(params))
	a.v = make([]*mat.Dense, len(params))
	for i, p := range params {
		r, c := p.Value.Dims()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
	}
	return a
}

// Step applies one update from the accumulated gradients.
func (a *Adam) Step() {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for i, p := range a.params {
		rows, cols := p.Value.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				g := p.Grad.At(r, c) + a.weightDecay*p.Value.At(r, c)

				m := a.beta1*a.m[i].At(r, c) + (1-a.beta1)*g
				v := a.beta2*a.v[i].At(r, c) + (1-a.beta2)*g*g
				a.m[i].Set(r, c, m)
				a.v[i].Set(r, c, v)

				update := a.lr * (m / bc1) / (math.Sqrt(v/bc2) + a.eps)
				p.Value.Set(r, c, p.Value.At(r, c)-update)
			}
		}
	}
}

// ZeroGrad clears every gradient accumulator before the next backward pass.
func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.Grad.Zero()
	}
}
