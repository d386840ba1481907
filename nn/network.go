package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Network is an ordered stack of layers trained by backpropagation.
type Network struct {
	layers []Layer
}

// NewNetwork builds a network from the given layer stack.
func NewNetwork(layers ...Layer) *Network {
	return &Network{layers: layers}
}

// Forward runs the batch through every layer. With training=true the layers
// cache activations for Backward and dropout is active; inference callers
// must pass false so repeated calls on the same input are deterministic.
func (n *Network) Forward(x *mat.Dense, training bool) *mat.Dense {
	out := x
	for _, l := range n.layers {
		out = l.Forward(out, training)
	}
	return out
}

// Backward propagates the loss gradient through the stack in reverse,
// accumulating parameter gradients along the way. Must follow a Forward
// call with training=true.
func (n *Network) Backward(grad *mat.Dense) {
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].Backward(grad)
	}
}

// Parameters collects every trainable parameter in layer order.
func (n *Network) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range n.layers {
		if pl, ok := l.(paramLayer); ok {
			params = append(params, pl.parameters()...)
		}
	}
	return params
}
