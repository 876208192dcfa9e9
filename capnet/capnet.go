// Package capnet is the image captioning network: a dense image encoder and a token embedding
// feeding a stack of LSTM cells, projected onto the vocabulary.
//
// The parameters are owned by a *Model. Graphs are unrolled per (batch, steps) shape on demand
// and share the model's parameters by value.
package capnet

import (
	"bytes"
	"encoding/gob"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var Float = G.Float32

// Param is a named learnable parameter.
type Param struct {
	Name  string
	Value *tensor.Dense
}

type paramDef struct {
	name  string
	shape tensor.Shape
	init  G.InitWFn
}

// Model is the whole caption network.
type Model struct {
	Config

	params  []Param
	solver  G.Solver
	version int // bumped on every parameter update

	graphs    *lru.Cache[shape, *unrolled] // training graphs
	evals     *lru.Cache[shape, *unrolled] // loss, logits and generation graphs
	evictErrs manyErr
}

// New returns a new, uninitialized *Model.
func New(conf Config) *Model {
	return &Model{Config: conf}
}

// Init (re)creates the parameters with fresh random weights and resets the optimizer.
func (m *Model) Init() error {
	if !m.IsValid() {
		return errors.Errorf("invalid config %+v", m.Config)
	}
	if err := m.reset(); err != nil {
		return err
	}
	defs := m.defs()
	m.params = make([]Param, 0, len(defs))
	for _, s := range defs {
		backing := s.init(Float, s.shape...)
		m.params = append(m.params, Param{
			Name:  s.name,
			Value: tensor.New(tensor.WithShape(s.shape.Clone()...), tensor.WithBacking(backing)),
		})
	}
	m.solver = G.NewAdamSolver(G.WithLearnRate(m.LearnRate))

	var err error
	if m.graphs, err = m.newCache(); err != nil {
		return err
	}
	m.evals, err = m.newCache()
	return err
}

func (m *Model) newCache() (*lru.Cache[shape, *unrolled], error) {
	c, err := lru.NewWithEvict[shape, *unrolled](m.GraphCache, func(_ shape, u *unrolled) {
		if err := u.close(); err != nil {
			m.evictErrs = append(m.evictErrs, err)
		}
	})
	return c, errors.WithStack(err)
}

// defs lists the parameters in a fixed order. The optimizer state is keyed by this order.
func (m *Model) defs() []paramDef {
	glorot := G.GlorotU(1.0)
	zeroes := G.Zeroes()
	retVal := []paramDef{
		{"W_i", tensor.Shape{m.ImgDim, m.EmbedDim}, glorot},
		{"b_i", tensor.Shape{1, m.EmbedDim}, zeroes},
		{"word_embeddings", tensor.Shape{m.VocabSize, m.EmbedDim}, glorot},
	}
	for l := 0; l < m.Layers; l++ {
		in := m.EmbedDim
		if l > 0 {
			in = m.HiddenDim
		}
		for _, gate := range "ifgo" {
			retVal = append(retVal,
				paramDef{fmt.Sprintf("lstm%d_wx_%c", l, gate), tensor.Shape{in, m.HiddenDim}, glorot},
				paramDef{fmt.Sprintf("lstm%d_wh_%c", l, gate), tensor.Shape{m.HiddenDim, m.HiddenDim}, glorot},
				paramDef{fmt.Sprintf("lstm%d_b_%c", l, gate), tensor.Shape{1, m.HiddenDim}, zeroes},
			)
		}
	}
	return append(retVal,
		paramDef{"softmax_w", tensor.Shape{m.HiddenDim, m.VocabSize}, glorot},
		paramDef{"softmax_b", tensor.Shape{1, m.VocabSize}, zeroes},
	)
}

// Learnables returns the model parameters, in a stable order.
func (m *Model) Learnables() []Param { return m.params }

// Close releases every unrolled graph.
func (m *Model) Close() error {
	if err := m.reset(); err != nil {
		return err
	}
	return nil
}

func (m *Model) reset() error {
	if m.graphs != nil {
		m.graphs.Purge()
	}
	if m.evals != nil {
		m.evals.Purge()
	}
	if len(m.evictErrs) > 0 {
		err := m.evictErrs
		m.evictErrs = nil
		return err
	}
	return nil
}

func (m *Model) GobEncode() (retVal []byte, err error) {
	if m.params == nil {
		return nil, errors.New("cannot encode an uninitialized model")
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err = enc.Encode(m.Config); err != nil {
		return nil, errors.WithStack(err)
	}
	for _, p := range m.params {
		if err = enc.Encode(p.Value); err != nil {
			return nil, errors.Wrapf(err, "encoding %v", p.Name)
		}
	}
	return buf.Bytes(), nil
}

// GobDecode restores the parameters. A zero *Model adopts the encoded config, otherwise
// the encoded parameter shapes must agree with the receiver's config.
func (m *Model) GobDecode(p []byte) error {
	buf := bytes.NewBuffer(p)
	dec := gob.NewDecoder(buf)

	var conf Config
	if err := dec.Decode(&conf); err != nil {
		return errors.WithStack(err)
	}
	switch {
	case m.Config == (Config{}):
		m.Config = conf
	case !m.sameShape(conf):
		return errors.WithStack(ShapeMismatchError{What: "checkpoint config", Want: fmt.Sprintf("%+v", m.Config), Got: fmt.Sprintf("%+v", conf)})
	}

	if err := m.Init(); err != nil {
		return err
	}
	for _, param := range m.params {
		v := new(tensor.Dense)
		if err := dec.Decode(v); err != nil {
			return errors.Wrapf(err, "decoding %v", param.Name)
		}
		if !v.Shape().Eq(param.Value.Shape()) {
			return errors.WithStack(ShapeMismatchError{What: param.Name, Want: fmt.Sprint(param.Value.Shape()), Got: fmt.Sprint(v.Shape())})
		}
		copy(param.Value.Data().([]float32), v.Data().([]float32))
	}
	m.version++
	return nil
}
