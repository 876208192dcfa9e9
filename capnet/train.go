package capnet

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorgonia/captioner/dataset"
	"github.com/gorgonia/captioner/vocab"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// graph returns the unrolled graph for s, building it if needed.
func (m *Model) graph(s shape) (*unrolled, error) {
	if m.params == nil {
		return nil, errors.New("model is not initialized")
	}
	cache := m.evals
	if s.train {
		cache = m.graphs
	}
	if u, ok := cache.Get(s); ok {
		return u, nil
	}
	u, err := m.unroll(s)
	if err != nil {
		return nil, err
	}
	cache.Add(s, u)
	return u, nil
}

// TrainStep computes the summed loss of the batch, then applies one Adam update to the parameters.
// It returns the loss computed before the update.
func (m *Model) TrainStep(b *dataset.Batch) (float32, error) {
	if err := m.check(b); err != nil {
		return 0, err
	}
	u, err := m.graph(shape{batch: b.Size(), steps: b.Steps(), train: true})
	if err != nil {
		return 0, err
	}
	u.vm.Reset()
	u.load(m)
	if err = u.bind(b.Images, b.Sentences, b.Targets); err != nil {
		return 0, err
	}
	if err = u.vm.RunAll(); err != nil {
		return 0, errors.WithStack(err)
	}
	cost := scalar(u.cost)
	if math32.IsNaN(cost) || math32.IsInf(cost, 0) {
		return cost, errors.Errorf("loss is %v", cost)
	}

	if err = m.solver.Step(G.NodesToValueGrads(u.learnables)); err != nil {
		return cost, errors.WithStack(err)
	}
	u.store(m)
	return cost, nil
}

// Loss computes the summed loss of the batch without dropout and without updating the parameters.
func (m *Model) Loss(b *dataset.Batch) (float32, error) {
	u, err := m.eval(b.Images, b.Sentences, b.Targets, true)
	if err != nil {
		return 0, err
	}
	return scalar(u.cost), nil
}

// Logits returns the logits of every row and token step of the batch: retVal[row][step] has
// VocabSize entries. Step t is the prediction made after consuming Sentences[row][t].
func (m *Model) Logits(b *dataset.Batch) ([][][]float32, error) {
	u, err := m.eval(b.Images, b.Sentences, b.Targets, true)
	if err != nil {
		return nil, err
	}
	retVal := make([][][]float32, u.batch)
	for row := range retVal {
		retVal[row] = make([][]float32, u.steps)
		for t := range retVal[row] {
			data := u.logitVals[t].Data().([]float32)
			logits := make([]float32, m.VocabSize)
			copy(logits, data[row*m.VocabSize:(row+1)*m.VocabSize])
			retVal[row][t] = logits
		}
	}
	return retVal, nil
}

// NextLogits returns the logits for the token that follows seq, given the image features.
func (m *Model) NextLogits(image []float32, seq []int) ([]float32, error) {
	if len(seq) == 0 {
		return nil, errors.WithStack(ShapeMismatchError{What: "sequence length", Want: ">= 1", Got: 0})
	}
	u, err := m.eval([][]float32{image}, [][]int{seq}, nil, false)
	if err != nil {
		return nil, err
	}
	last := u.logitVals[len(seq)-1].Data().([]float32)
	retVal := make([]float32, m.VocabSize)
	copy(retVal, last)
	return retVal, nil
}

// eval runs the forward-only graph. When fixedBatch is set the batch must have the configured size.
func (m *Model) eval(images [][]float32, sentences, targets [][]int, fixedBatch bool) (*unrolled, error) {
	b := &dataset.Batch{Images: images, Sentences: sentences, Targets: targets}
	if fixedBatch {
		if err := m.check(b); err != nil {
			return nil, err
		}
	} else if err := m.checkRows(b); err != nil {
		return nil, err
	}

	u, err := m.graph(shape{batch: b.Size(), steps: b.Steps()})
	if err != nil {
		return nil, err
	}
	u.vm.Reset()
	u.load(m)
	if err = u.bind(images, sentences, targets); err != nil {
		return nil, err
	}
	if err = u.vm.RunAll(); err != nil {
		return nil, errors.WithStack(err)
	}
	return u, nil
}

// check validates a training batch against the configuration.
func (m *Model) check(b *dataset.Batch) error {
	if b.Size() != m.BatchSize {
		return errors.WithStack(ShapeMismatchError{What: "batch size", Want: m.BatchSize, Got: b.Size()})
	}
	if len(b.Targets) != b.Size() {
		return errors.WithStack(ShapeMismatchError{What: "targets", Want: b.Size(), Got: len(b.Targets)})
	}
	if err := m.checkRows(b); err != nil {
		return err
	}
	steps := b.Steps()
	for i, row := range b.Targets {
		if len(row) != steps {
			return errors.WithStack(ShapeMismatchError{What: "target steps", Want: steps, Got: len(row)})
		}
		for _, id := range row {
			if id < dataset.IgnoreTarget || id >= m.VocabSize {
				return errors.Wrapf(vocab.IndexOutOfRangeError{Index: id, Size: m.VocabSize}, "target of row %d", i)
			}
		}
	}
	return nil
}

// checkRows validates the images and sentences of a batch of any size.
func (m *Model) checkRows(b *dataset.Batch) error {
	if b.Size() == 0 {
		return errors.WithStack(ShapeMismatchError{What: "batch size", Want: ">= 1", Got: 0})
	}
	if len(b.Images) != b.Size() {
		return errors.WithStack(ShapeMismatchError{What: "images", Want: b.Size(), Got: len(b.Images)})
	}
	steps := b.Steps()
	if steps == 0 {
		return errors.WithStack(ShapeMismatchError{What: "steps", Want: ">= 1", Got: 0})
	}
	for i := range b.Sentences {
		if len(b.Images[i]) != m.ImgDim {
			return errors.WithStack(ShapeMismatchError{What: "image features", Want: m.ImgDim, Got: len(b.Images[i])})
		}
		if len(b.Sentences[i]) != steps {
			return errors.WithStack(ShapeMismatchError{What: "sentence steps", Want: steps, Got: len(b.Sentences[i])})
		}
		for _, id := range b.Sentences[i] {
			if id < 0 || id >= m.VocabSize {
				return errors.Wrapf(vocab.IndexOutOfRangeError{Index: id, Size: m.VocabSize}, "sentence of row %d", i)
			}
		}
	}
	return nil
}

func scalar(v G.Value) float32 {
	switch d := v.Data().(type) {
	case float32:
		return d
	case []float32:
		return d[0]
	}
	panic(fmt.Sprintf("unexpected cost value %v", v))
}
