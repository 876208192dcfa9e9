package capnet

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// shape identifies an unrolled graph.
type shape struct {
	batch, steps int
	train        bool // dropout and gradients
}

// unrolled is the network unrolled over a fixed number of token steps for a fixed batch size.
//
// The sequence fed to the LSTM stack is the image embedding followed by one embedding per token
// step, so there are steps+1 recurrent steps. Logits are only produced for the token steps.
type unrolled struct {
	shape
	g          *G.ExprGraph
	learnables G.Nodes // same order as Model.params
	version    int     // Model.version the learnables were last loaded from

	images  *G.Node
	words   []*G.Node // one-hot, one per token step
	targets []*G.Node // one-hot, one per token step. Zero rows are ignored
	logits  []*G.Node
	costN   *G.Node

	imagesT  *tensor.Dense
	wordsT   []*tensor.Dense
	targetsT []*tensor.Dense

	logitVals []G.Value
	cost      G.Value

	vm G.VM
}

func (m *Model) unroll(s shape) (*unrolled, error) {
	u := &unrolled{
		shape:   s,
		g:       G.NewGraph(),
		version: -1,
	}
	for _, p := range m.params {
		n := G.NewTensor(u.g, Float, p.Value.Dims(), G.WithShape(p.Value.Shape().Clone()...), G.WithName(p.Name), G.WithValue(p.Value.Clone()))
		u.learnables = append(u.learnables, n)
	}

	if err := u.fwd(m.Config); err != nil {
		return nil, err
	}
	u.alloc(m.Config)

	if s.train {
		if _, err := G.Grad(u.costN, u.learnables...); err != nil {
			return nil, errors.WithStack(err)
		}
		u.vm = G.NewTapeMachine(u.g, G.BindDualValues(u.learnables...))
	} else {
		u.vm = G.NewTapeMachine(u.g)
	}
	return u, nil
}

// learnable returns the learnable node with the given name.
func (u *unrolled) learnable(name string) *G.Node {
	for _, n := range u.learnables {
		if n.Name() == name {
			return n
		}
	}
	panic(fmt.Sprintf("no learnable named %q", name))
}

func (u *unrolled) layer(l int) lstm {
	var w lstm
	for k, gate := range "ifgo" {
		w.wx[k] = u.learnable(fmt.Sprintf("lstm%d_wx_%c", l, gate))
		w.wh[k] = u.learnable(fmt.Sprintf("lstm%d_wh_%c", l, gate))
		w.b[k] = u.learnable(fmt.Sprintf("lstm%d_b_%c", l, gate))
	}
	return w
}

func (u *unrolled) fwd(conf Config) error {
	batch, steps := u.batch, u.steps
	keep := 1.0
	if u.train {
		keep = conf.KeepProb
	}

	u.images = G.NewMatrix(u.g, Float, G.WithShape(batch, conf.ImgDim), G.WithName("images"))
	var m maebe

	// image encoder: the first step of the sequence
	xs := make([]*G.Node, 0, steps+1)
	xs = append(xs, m.sigmoid(m.affine(u.images, u.learnable("W_i"), u.learnable("b_i"))))

	// token encoder
	embeddings := u.learnable("word_embeddings")
	for t := 0; t < steps; t++ {
		w := G.NewMatrix(u.g, Float, G.WithShape(batch, conf.VocabSize), G.WithName(fmt.Sprintf("words_%d", t)))
		u.words = append(u.words, w)
		xs = append(xs, m.mul(w, embeddings))
	}

	// recurrent decoder
	layers := make([]lstm, conf.Layers)
	for l := range layers {
		layers[l] = u.layer(l)
	}
	hs := make([]*G.Node, conf.Layers)
	cs := make([]*G.Node, conf.Layers)
	outputs := make([]*G.Node, 0, steps+1)
	for _, x := range xs {
		in := x
		for l, w := range layers {
			hs[l], cs[l] = m.cell(m.dropout(in, keep), hs[l], cs[l], w)
			in = m.dropout(hs[l], keep)
		}
		outputs = append(outputs, in)
	}
	if m.err != nil {
		return m.err
	}

	// projection and loss. The image step's output is not projected.
	softmaxW, softmaxB := u.learnable("softmax_w"), u.learnable("softmax_b")
	var cost *G.Node
	for t, out := range outputs[1:] {
		logits := m.affine(out, softmaxW, softmaxB)
		target := G.NewMatrix(u.g, Float, G.WithShape(batch, conf.VocabSize), G.WithName(fmt.Sprintf("targets_%d", t)))
		u.logits = append(u.logits, logits)
		u.targets = append(u.targets, target)

		xent := m.xent(logits, target)
		if cost == nil {
			cost = xent
		} else {
			cost = m.add(cost, xent)
		}
	}
	if m.err != nil {
		return m.err
	}
	u.costN = cost
	G.Read(cost, &u.cost)

	if !u.train {
		u.logitVals = make([]G.Value, len(u.logits))
		for t, l := range u.logits {
			G.Read(l, &u.logitVals[t])
		}
	}
	return nil
}

// alloc preallocates the input tensors.
func (u *unrolled) alloc(conf Config) {
	u.imagesT = tensor.New(tensor.WithShape(u.batch, conf.ImgDim), tensor.WithBacking(borrowF32(u.batch*conf.ImgDim)))
	for range u.words {
		u.wordsT = append(u.wordsT, tensor.New(tensor.WithShape(u.batch, conf.VocabSize), tensor.WithBacking(borrowF32(u.batch*conf.VocabSize))))
		u.targetsT = append(u.targetsT, tensor.New(tensor.WithShape(u.batch, conf.VocabSize), tensor.WithBacking(borrowF32(u.batch*conf.VocabSize))))
	}
}

// load copies the model parameters into the graph, unless the graph already holds them.
func (u *unrolled) load(m *Model) {
	if u.version == m.version {
		return
	}
	for i, n := range u.learnables {
		copy(n.Value().Data().([]float32), m.params[i].Value.Data().([]float32))
	}
	u.version = m.version
}

// store copies the graph's (updated) learnables back into the model.
func (u *unrolled) store(m *Model) {
	for i, n := range u.learnables {
		copy(m.params[i].Value.Data().([]float32), n.Value().Data().([]float32))
	}
	m.version++
	u.version = m.version
}

// bind fills the input tensors. The sentences and targets are [batch][steps]; a negative target
// leaves its one-hot row empty.
func (u *unrolled) bind(images [][]float32, sentences, targets [][]int) error {
	imgs := u.imagesT.Data().([]float32)
	dim := u.imagesT.Shape()[1]
	for i, img := range images {
		copy(imgs[i*dim:(i+1)*dim], img)
	}
	if err := G.Let(u.images, u.imagesT); err != nil {
		return errors.WithStack(err)
	}

	for t := range u.words {
		oneHot(u.wordsT[t], sentences, t)
		oneHot(u.targetsT[t], targets, t)
		if err := G.Let(u.words[t], u.wordsT[t]); err != nil {
			return errors.WithStack(err)
		}
		if err := G.Let(u.targets[t], u.targetsT[t]); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func oneHot(t *tensor.Dense, ids [][]int, step int) {
	t.Zero()
	data := t.Data().([]float32)
	width := t.Shape()[1]
	for row := range ids {
		if id := ids[row][step]; id >= 0 {
			data[row*width+id] = 1
		}
	}
}

func (u *unrolled) close() error {
	err := u.vm.Close()
	returnF32(u.imagesT.Data().([]float32))
	for t := range u.wordsT {
		returnF32(u.wordsT[t].Data().([]float32))
		returnF32(u.targetsT[t].Data().([]float32))
	}
	return errors.WithStack(err)
}
