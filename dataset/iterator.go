package dataset

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Iterator is a single pass over a corpus, batch by batch. Captions that do not fill
// a whole batch at the end of the pass are dropped.
type Iterator struct {
	conf     Config
	order    []int
	sentence map[int][]int
	imageID  map[int]int
	features Features

	pos   int
	batch *Batch
	err   error
}

// Iterate returns an iterator for one epoch over captions.
func Iterate(captions []int, id2sentence map[int][]int, id2imageID map[int]int, features Features, conf Config) *Iterator {
	order := make([]int, len(captions))
	copy(order, captions)
	if conf.Shuffle {
		r := rand.New(rand.NewSource(conf.Seed))
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	it := &Iterator{
		conf:     conf,
		order:    order,
		sentence: id2sentence,
		imageID:  id2imageID,
		features: features,
	}
	if conf.BatchSize < 1 {
		it.err = errors.Errorf("batch size must be positive. Got %d", conf.BatchSize)
	}
	return it
}

// IterateCorpus is Iterate over a *Corpus.
func IterateCorpus(c *Corpus, features Features, conf Config) *Iterator {
	return Iterate(c.Captions, c.ID2Sentence, c.ID2ImageID, features, conf)
}

// Len is the number of batches in a full pass.
func (it *Iterator) Len() int {
	if it.conf.BatchSize < 1 {
		return 0
	}
	return len(it.order) / it.conf.BatchSize
}

// Next prepares the next batch. It returns false when the pass is over or an error occurred.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.pos+it.conf.BatchSize > len(it.order) {
		it.batch = nil
		return false
	}
	ids := it.order[it.pos : it.pos+it.conf.BatchSize]
	it.pos += it.conf.BatchSize

	var b *Batch
	if b, it.err = it.prepare(ids); it.err != nil {
		it.batch = nil
		return false
	}
	it.batch = b
	return true
}

// Batch returns the batch prepared by the last successful call to Next.
func (it *Iterator) Batch() *Batch { return it.batch }

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) prepare(ids []int) (*Batch, error) {
	var steps int
	for _, id := range ids {
		s, ok := it.sentence[id]
		if !ok {
			return nil, errors.Errorf("caption %d has no sentence", id)
		}
		if len(s) < 2 {
			return nil, errors.Errorf("caption %d is too short (%d ids). Expected at least the start and end markers", id, len(s))
		}
		if len(s) > steps {
			steps = len(s)
		}
	}

	b := &Batch{
		CaptionIDs: make([]int, len(ids)),
		Sentences:  make([][]int, len(ids)),
		Images:     make([][]float32, len(ids)),
		Targets:    make([][]int, len(ids)),
	}
	copy(b.CaptionIDs, ids)
	for i, id := range ids {
		imgID, ok := it.imageID[id]
		if !ok {
			return nil, errors.Errorf("caption %d has no image", id)
		}
		feat, ok := it.features[imgID]
		if !ok {
			return nil, errors.Errorf("image %d (caption %d) has no features", imgID, id)
		}
		b.Images[i] = feat
		b.Sentences[i], b.Targets[i] = shift(it.sentence[id], steps, it.conf.PadID)
	}
	return b, nil
}

// shift pads sentence to steps and builds the targets: the input at step t predicts
// sentence[t+1]. The step that consumes the end marker and the padded steps have no target.
func shift(sentence []int, steps, pad int) (input, target []int) {
	input = make([]int, steps)
	target = make([]int, steps)
	for t := range input {
		switch {
		case t < len(sentence):
			input[t] = sentence[t]
		default:
			input[t] = pad
		}
		if t+1 < len(sentence) {
			target[t] = sentence[t+1]
		} else {
			target[t] = IgnoreTarget
		}
	}
	return input, target
}
