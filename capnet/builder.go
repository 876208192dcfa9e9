package capnet

import (
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// eps keeps log(softmax) finite when a probability underflows.
const eps = 1e-10

type maebe struct {
	err error
}

// do runs f unless an earlier step failed. The first error is kept.
func (m *maebe) do(f func() (*G.Node, error)) (retVal *G.Node) {
	if m.err != nil {
		return nil
	}
	if retVal, m.err = f(); m.err != nil {
		m.err = errors.WithStack(m.err)
	}
	return
}

// affine computes x·w + b, where b is a (1, units) row broadcast over the rows of x.
func (m *maebe) affine(x, w, b *G.Node) *G.Node {
	xw := m.do(func() (*G.Node, error) { return G.Mul(x, w) })
	return m.do(func() (*G.Node, error) { return G.BroadcastAdd(xw, b, nil, []byte{0}) })
}

func (m *maebe) mul(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Mul(a, b) })
}

func (m *maebe) add(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Add(a, b) })
}

func (m *maebe) hadamard(a, b *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.HadamardProd(a, b) })
}

func (m *maebe) sigmoid(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Sigmoid(x) })
}

func (m *maebe) tanh(x *G.Node) *G.Node {
	return m.do(func() (*G.Node, error) { return G.Tanh(x) })
}

// dropout drops with probability 1-keep. A keep-probability of 1 is the identity.
func (m *maebe) dropout(x *G.Node, keep float64) *G.Node {
	if keep >= 1 {
		return x
	}
	return m.do(func() (*G.Node, error) { return G.Dropout(x, 1-keep) })
}

// xent is the summed sparse cross entropy of logits against one-hot targets.
// Rows of target that are all zero do not contribute.
func (m *maebe) xent(logits, target *G.Node) (retVal *G.Node) {
	var small *G.Node
	switch Float {
	case G.Float32:
		small = G.NewConstant(float32(eps))
	case G.Float64:
		small = G.NewConstant(float64(eps))
	}
	prob := m.do(func() (*G.Node, error) { return G.SoftMax(logits) })
	prob = m.do(func() (*G.Node, error) { return G.Add(prob, small) })
	logp := m.do(func() (*G.Node, error) { return G.Log(prob) })
	retVal = m.hadamard(target, logp)
	retVal = m.do(func() (*G.Node, error) { return G.Sum(retVal) })
	return m.do(func() (*G.Node, error) { return G.Neg(retVal) })
}

// lstm holds the weights of one LSTM cell. Each gate has its own input, recurrent and bias weights.
type lstm struct {
	wx, wh, b [4]*G.Node // input, forget, cell, output
}

const (
	gateI = iota
	gateF
	gateG
	gateO
)

// cell runs a single step of an LSTM. hPrev and cPrev are nil for the first step of a sequence,
// which is the same as starting from a zero state.
func (m *maebe) cell(x, hPrev, cPrev *G.Node, w lstm) (h, c *G.Node) {
	if m.err != nil {
		return nil, nil
	}
	gate := func(k int) *G.Node {
		pre := m.affine(x, w.wx[k], w.b[k])
		if hPrev != nil {
			pre = m.add(pre, m.mul(hPrev, w.wh[k]))
		}
		return pre
	}

	i := m.sigmoid(gate(gateI))
	g := m.tanh(gate(gateG))
	o := m.sigmoid(gate(gateO))

	c = m.hadamard(i, g)
	if cPrev != nil {
		var one *G.Node
		switch Float {
		case G.Float32:
			one = G.NewConstant(float32(1))
		case G.Float64:
			one = G.NewConstant(float64(1))
		}
		fPre := gate(gateF)
		f := m.sigmoid(m.do(func() (*G.Node, error) { return G.Add(fPre, one) })) // forget bias of 1
		c = m.add(m.hadamard(f, cPrev), c)
	}
	h = m.hadamard(o, m.tanh(c))
	return h, c
}
