// Package dataset turns preprocessed captions and image features into padded training batches.
package dataset

// IgnoreTarget marks a target position that does not contribute to the loss.
const IgnoreTarget = -1

// Caption is a single caption record. Many captions may share one image.
type Caption struct {
	ID       int
	Sentence []int // token ids, including the start and end markers
	ImageID  int
}

// Features maps an image id to its fixed length feature vector.
type Features map[int][]float32

// Dim returns the feature dimensionality, or 0 if there are no features.
func (f Features) Dim() int {
	for _, v := range f {
		return len(v)
	}
	return 0
}

// Corpus is the preprocessed caption collection.
type Corpus struct {
	Captions    []int         // caption ids, in file order
	ID2Sentence map[int][]int // caption id -> token ids
	ID2ImageID  map[int]int   // caption id -> image id
}

// Caption returns the caption record for id.
func (c *Corpus) Caption(id int) (Caption, bool) {
	s, ok := c.ID2Sentence[id]
	if !ok {
		return Caption{}, false
	}
	img, ok := c.ID2ImageID[id]
	if !ok {
		return Caption{}, false
	}
	return Caption{ID: id, Sentence: s, ImageID: img}, true
}

// Batch is a group of captions padded to a shared number of steps.
//
// Sentences[i] is the padded input of row i. Targets[i][t] is the id the model should
// predict after consuming Sentences[i][t], or IgnoreTarget.
type Batch struct {
	CaptionIDs []int
	Sentences  [][]int
	Images     [][]float32
	Targets    [][]int
}

// Size is the number of rows in the batch.
func (b *Batch) Size() int { return len(b.Sentences) }

// Steps is the number of token steps of the batch.
func (b *Batch) Steps() int {
	if len(b.Sentences) == 0 {
		return 0
	}
	return len(b.Sentences[0])
}

// Config configures batching.
type Config struct {
	BatchSize int
	PadID     int   // placeholder id for padded positions
	Shuffle   bool  // shuffle caption order every pass
	Seed      int64 // seed for shuffling. Passes with the same seed see the same order
}
