package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestDenseForwardKnownValues(t *testing.T) {
	d := NewDense(2, 1, newRNG(1))
	d.w = mat.NewDense(2, 1, []float64{2, 3})
	d.b = mat.NewDense(1, 1, []float64{0.5})

	x := mat.NewDense(2, 2, []float64{
		1, 1,
		-1, 2,
	})
	y := d.Forward(x, false)

	want := []float64{2*1 + 3*1 + 0.5, 2*-1 + 3*2 + 0.5}
	for i, w := range want {
		if got := y.At(i, 0); math.Abs(got-w) > 1e-12 {
			t.Errorf("row %d: got %v, want %v", i, got, w)
		}
	}
}

func TestDenseBackwardNumericalGradient(t *testing.T) {
	rng := newRNG(2)
	d := NewDense(3, 2, rng)
	x := mat.NewDense(4, 3, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			x.Set(i, j, rng.Float64()*2-1)
		}
	}
	target := mat.NewDense(4, 2, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 2; j++ {
			target.Set(i, j, rng.Float64())
		}
	}

	loss := func() float64 {
		y := d.Forward(x, false)
		var sum float64
		for i := 0; i < 4; i++ {
			for j := 0; j < 2; j++ {
				diff := y.At(i, j) - target.At(i, j)
				sum += diff * diff
			}
		}
		return sum / 8
	}

	// Analytic gradient.
	y := d.Forward(x, true)
	grad := mat.NewDense(4, 2, nil)
	grad.Sub(y, target)
	grad.Scale(2.0/8, grad)
	d.Backward(grad)

	// Central differences against every weight.
	const h = 1e-6
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			orig := d.w.At(i, j)
			d.w.Set(i, j, orig+h)
			up := loss()
			d.w.Set(i, j, orig-h)
			down := loss()
			d.w.Set(i, j, orig)

			numeric := (up - down) / (2 * h)
			analytic := d.gradW.At(i, j)
			if math.Abs(numeric-analytic) > 1e-5 {
				t.Errorf("w(%d,%d): numeric %v vs analytic %v", i, j, numeric, analytic)
			}
		}
	}
}

func TestReLUBackwardGatesNegatives(t *testing.T) {
	r := NewReLU()
	x := mat.NewDense(1, 3, []float64{-1, 0, 2})
	r.Forward(x, true)
	g := r.Backward(mat.NewDense(1, 3, []float64{1, 1, 1}))

	want := []float64{0, 0, 1}
	for j, w := range want {
		if g.At(0, j) != w {
			t.Errorf("grad[%d] = %v, want %v", j, g.At(0, j), w)
		}
	}
}

func TestLeakyReLUSlope(t *testing.T) {
	l := NewLeakyReLU(0.01)
	x := mat.NewDense(1, 2, []float64{-10, 10})
	y := l.Forward(x, true)
	if got := y.At(0, 0); math.Abs(got-(-0.1)) > 1e-12 {
		t.Errorf("negative input: got %v, want -0.1", got)
	}
	if got := y.At(0, 1); got != 10 {
		t.Errorf("positive input: got %v, want 10", got)
	}
}

func TestSigmoidRangeAndGradient(t *testing.T) {
	s := NewSigmoid()
	x := mat.NewDense(1, 3, []float64{-50, 0, 50})
	y := s.Forward(x, true)
	for j := 0; j < 3; j++ {
		if v := y.At(0, j); v < 0 || v > 1 {
			t.Errorf("output %v outside (0,1)", v)
		}
	}
	if math.Abs(y.At(0, 1)-0.5) > 1e-12 {
		t.Errorf("sigmoid(0) = %v, want 0.5", y.At(0, 1))
	}

	g := s.Backward(mat.NewDense(1, 3, []float64{1, 1, 1}))
	if math.Abs(g.At(0, 1)-0.25) > 1e-12 {
		t.Errorf("sigmoid'(0) = %v, want 0.25", g.At(0, 1))
	}
}

func TestDropoutInferencePassthrough(t *testing.T) {
	d := NewDropout(0.5, newRNG(3))
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	y := d.Forward(x, false)
	if !mat.Equal(x, y) {
		t.Error("dropout must be the identity outside training")
	}
}

func TestDropoutScalesSurvivors(t *testing.T) {
	d := NewDropout(0.5, newRNG(4))
	x := mat.NewDense(8, 8, nil)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			x.Set(i, j, 1)
		}
	}
	y := d.Forward(x, true)
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			v := y.At(i, j)
			if v != 0 && math.Abs(v-2) > 1e-12 {
				t.Fatalf("survivor scaled to %v, want 2", v)
			}
		}
	}
}

func TestNetworkTrainsLinearMapping(t *testing.T) {
	rng := newRNG(5)
	net := NewNetwork(
		NewDense(2, 8, rng),
		NewReLU(),
		NewDense(8, 1, rng),
	)
	solver := NewAdam(net.Parameters(), 0.01, 0)

	x := mat.NewDense(32, 2, nil)
	target := mat.NewDense(32, 1, nil)
	for i := 0; i < 32; i++ {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		target.Set(i, 0, 0.5*a-0.25*b)
	}

	mse := func(pred *mat.Dense) float64 {
		var sum float64
		for i := 0; i < 32; i++ {
			diff := pred.At(i, 0) - target.At(i, 0)
			sum += diff * diff
		}
		return sum / 32
	}

	initial := mse(net.Forward(x, false))
	for step := 0; step < 500; step++ {
		pred := net.Forward(x, true)
		grad := mat.NewDense(32, 1, nil)
		grad.Sub(pred, target)
		grad.Scale(2.0/32, grad)

		solver.ZeroGrad()
		net.Backward(grad)
		solver.Step()
	}
	final := mse(net.Forward(x, false))

	if final >= initial {
		t.Fatalf("loss did not decrease: %v -> %v", initial, final)
	}
	if final > 0.01 {
		t.Errorf("final loss %v, want < 0.01 on a linear mapping", final)
	}
}

func TestNetworkDeterministicWithSameSeed(t *testing.T) {
	build := func() *Network {
		rng := newRNG(6)
		return NewNetwork(
			NewDense(3, 4, rng),
			NewReLU(),
			NewDense(4, 2, rng),
		)
	}
	x := mat.NewDense(2, 3, []float64{1, 2, 3, -1, 0, 1})

	a := build().Forward(x, false)
	b := build().Forward(x, false)
	if !mat.Equal(a, b) {
		t.Error("identical seeds must produce identical networks")
	}
}

func TestAdamZeroGrad(t *testing.T) {
	p := &Parameter{
		Value: mat.NewDense(1, 1, []float64{1}),
		Grad:  mat.NewDense(1, 1, []float64{42}),
	}
	a := NewAdam([]*Parameter{p}, 0.1, 0)
	a.ZeroGrad()
	if p.Grad.At(0, 0) != 0 {
		t.Errorf("gradient not cleared: %v", p.Grad.At(0, 0))
	}
}
