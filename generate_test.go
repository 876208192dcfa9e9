package captioner

import (
	"testing"

	"github.com/gorgonia/captioner/sample"
	"github.com/gorgonia/captioner/vocab"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dogs = map[int]string{0: vocab.StartToken, 1: vocab.EndToken, 2: "a", 3: "dog", 4: "cat"}

// scripted predicts preds[i] as the i-th generated token, repeating the last prediction forever.
type scripted struct {
	size  int
	preds []int
	calls int
	seqs  [][]int
}

func (m *scripted) NextLogits(image []float32, seq []int) ([]float32, error) {
	m.calls++
	m.seqs = append(m.seqs, append([]int(nil), seq...))
	i := len(seq) - 1
	if i >= len(m.preds) {
		i = len(m.preds) - 1
	}
	logits := make([]float32, m.size)
	logits[m.preds[i]] = 10
	return logits, nil
}

func newVocab(t *testing.T) *vocab.Vocab {
	v, err := vocab.New(dogs)
	require.NoError(t, err)
	return v
}

func TestGenerateScenario(t *testing.T) {
	v := newVocab(t)
	m := &scripted{size: v.Size(), preds: []int{2, 3, 1}}
	g := &Generator{Model: m, Vocab: v}

	caption, err := g.Generate([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "a dog", caption)

	// the whole partial sequence is fed every step
	assert.Equal(t, [][]int{{0}, {0, 2}, {0, 2, 3}}, m.seqs)
}

func TestGenerateIDs(t *testing.T) {
	v := newVocab(t)
	g := &Generator{Model: &scripted{size: v.Size(), preds: []int{4, 1}}, Vocab: v, Sampler: sample.Greedy()}
	ids, err := g.GenerateIDs(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 1}, ids)
}

func TestGenerateTerminates(t *testing.T) {
	v := newVocab(t)
	for _, max := range []int{1, 3, 7} {
		m := &scripted{size: v.Size(), preds: []int{2}} // never predicts the end marker
		g := &Generator{Model: m, Vocab: v, MaxTokens: max}
		ids, err := g.GenerateIDs(nil)
		require.NoError(t, err)
		assert.Len(t, ids, max+1, "max %d", max)
		assert.Equal(t, max, m.calls)
	}

	m := &scripted{size: v.Size(), preds: []int{3}}
	g := &Generator{Model: m, Vocab: v}
	ids, err := g.GenerateIDs(nil)
	require.NoError(t, err)
	assert.Len(t, ids, DefaultMaxTokens+1)
}

func TestGenerateEmpty(t *testing.T) {
	v := newVocab(t)
	g := &Generator{Model: &scripted{size: v.Size(), preds: []int{1}}, Vocab: v}
	caption, err := g.Generate(nil)
	require.NoError(t, err)
	assert.Equal(t, "", caption)
}

func TestGenerateInnerMarker(t *testing.T) {
	v := newVocab(t)
	g := &Generator{Model: &scripted{size: v.Size(), preds: []int{2, 0, 3, 1}}, Vocab: v}
	caption, err := g.Generate(nil)
	require.NoError(t, err)
	assert.Equal(t, "a <start> dog", caption)
}

type failing struct{}

func (failing) NextLogits([]float32, []int) ([]float32, error) { return nil, errors.New("boom") }

type outOfRange struct{}

func (outOfRange) Sample([]float32) (int, error) { return 99, nil }

func TestGenerateErrors(t *testing.T) {
	v := newVocab(t)
	_, err := (&Generator{Model: failing{}, Vocab: v}).Generate(nil)
	assert.Error(t, err)

	g := &Generator{Model: &scripted{size: v.Size(), preds: []int{2}}, Vocab: v, Sampler: outOfRange{}}
	_, err = g.Generate(nil)
	var ioor vocab.IndexOutOfRangeError
	assert.True(t, errors.As(err, &ioor), "%v", err)
}

func TestGenerateSampled(t *testing.T) {
	v := newVocab(t)
	seed := uint64(1)
	m := &scripted{size: v.Size(), preds: []int{2, 3, 1}}
	// logits of 10 against 0 leave little to chance, and TopK(1) leaves none
	g := &Generator{Model: m, Vocab: v, Sampler: sample.Weighted(&seed, sample.TopK(1))}
	caption, err := g.Generate(nil)
	require.NoError(t, err)
	assert.Equal(t, "a dog", caption)
}
