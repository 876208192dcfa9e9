package captioner

import (
	"github.com/gorgonia/captioner/sample"
	"github.com/gorgonia/captioner/vocab"
	"github.com/pkg/errors"
)

// DefaultMaxTokens is the number of tokens a caption may grow to after the start marker.
const DefaultMaxTokens = 50

// Generator decodes image features into captions, one token at a time.
type Generator struct {
	Model     LogitModel
	Vocab     *vocab.Vocab
	Sampler   sample.Sampler // Greedy if nil
	MaxTokens int            // DefaultMaxTokens if <= 0
}

// GenerateIDs returns the decoded sequence, starting with the start marker. The sequence ends
// with the end marker unless the length bound was hit first.
func (g *Generator) GenerateIDs(image []float32) ([]int, error) {
	s := g.Sampler
	if s == nil {
		s = sample.Greedy()
	}
	max := g.MaxTokens
	if max <= 0 {
		max = DefaultMaxTokens
	}

	seq := make([]int, 1, max+1)
	seq[0] = g.Vocab.Start()
	for len(seq)-1 < max {
		logits, err := g.Model.NextLogits(image, seq)
		if err != nil {
			return seq, err
		}
		next, err := s.Sample(logits)
		if err != nil {
			return seq, errors.WithMessagef(err, "sampling token %d", len(seq))
		}
		if next < 0 || next >= g.Vocab.Size() {
			return seq, errors.WithStack(vocab.IndexOutOfRangeError{Index: next, Size: g.Vocab.Size()})
		}
		seq = append(seq, next)
		if next == g.Vocab.End() {
			break
		}
	}
	return seq, nil
}

// Generate returns the caption of image as space separated tokens, without the markers.
func (g *Generator) Generate(image []float32) (string, error) {
	seq, err := g.GenerateIDs(image)
	if err != nil {
		return "", err
	}
	return g.Vocab.DecodeSentence(seq)
}
