// Package sample picks the next token from a vector of logits.
package sample

import (
	"cmp"
	"math"
	"slices"

	pq "github.com/emirpasic/gods/v2/queues/priorityqueue"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
	"gorgonia.org/vecf32"
)

// Transform rewrites logits before sampling. Masked out entries are set to -Inf.
type Transform interface {
	Apply([]float64) ([]float64, error)
}

type Sampler interface {
	Sample([]float32) (int, error)
}

func softmax(logits []float64) []float64 {
	max := slices.Max(logits)
	var sum float64
	retVal := make([]float64, len(logits))
	for i, v := range logits {
		retVal[i] = math.Exp(v - max)
		sum += retVal[i]
	}
	floats.Scale(1/sum, retVal)
	return retVal
}

type greedy struct{}

// Greedy always picks the highest scoring token.
func Greedy() Sampler { return greedy{} }

func (greedy) Sample(logits []float32) (int, error) {
	if len(logits) == 0 {
		return -1, errors.New("no logits to sample from")
	}
	return vecf32.Argmax(logits), nil
}

type Temperature float64

func (t Temperature) Apply(logits []float64) ([]float64, error) {
	if t <= 0 || t > 2 {
		return nil, errors.Errorf("temperature must be in (0, 2], got %v", float64(t))
	}
	max := slices.Max(logits)
	for i := range logits {
		logits[i] = (logits[i] - max) / float64(t)
	}
	return logits, nil
}

type indexedLogit struct {
	index int
	logit float64
}

func byLogitDesc(a, b indexedLogit) int { return -cmp.Compare(a.logit, b.logit) }

// TopK keeps the k highest scoring tokens.
type TopK int

func (k TopK) Apply(logits []float64) ([]float64, error) {
	if k <= 0 {
		return nil, errors.New("k must be greater than 0")
	}
	if int(k) >= len(logits) {
		return logits, nil
	}

	q := pq.NewWith(byLogitDesc)
	for i, logit := range logits {
		q.Enqueue(indexedLogit{index: i, logit: logit})
	}
	keep := make(map[int]struct{}, int(k))
	for i := 0; i < int(k); i++ {
		l, _ := q.Dequeue()
		keep[l.index] = struct{}{}
	}
	for i := range logits {
		if _, ok := keep[i]; !ok {
			logits[i] = math.Inf(-1)
		}
	}
	return logits, nil
}

type weighted struct {
	src        rand.Source
	transforms []Transform
}

// Weighted draws a token from the softmax of the (transformed) logits.
// A nil seed uses the global source.
func Weighted(seed *uint64, transforms ...Transform) Sampler {
	var src rand.Source
	if seed != nil {
		src = rand.NewSource(*seed)
	}
	return &weighted{src: src, transforms: transforms}
}

func (s *weighted) Sample(logits []float32) (int, error) {
	logits64 := make([]float64, len(logits))
	for i, v := range logits {
		logits64[i] = float64(v)
	}

	var err error
	for _, t := range s.transforms {
		if logits64, err = t.Apply(logits64); err != nil {
			return -1, err
		}
	}

	valid := make([]float64, 0, len(logits64))
	indices := make([]int, 0, len(logits64))
	for i, logit := range logits64 {
		if !math.IsInf(logit, -1) && !math.IsNaN(logit) {
			valid = append(valid, logit)
			indices = append(indices, i)
		}
	}
	if len(valid) == 0 {
		return -1, errors.New("no valid logits to sample from")
	}

	w := sampleuv.NewWeighted(softmax(valid), s.src)
	if idx, ok := w.Take(); ok {
		return indices[idx], nil
	}
	return -1, errors.New("weighted sampler found no token")
}
