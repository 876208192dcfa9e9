package sample

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreedy(t *testing.T) {
	idx, err := Greedy().Sample([]float32{1, 4, 2, 4, -3})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = Greedy().Sample(nil)
	assert.Error(t, err)
}

func TestWeighted(t *testing.T) {
	inf := float32(math.Inf(-1))
	idx, err := Weighted(nil).Sample([]float32{inf, 2, inf, inf})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = Weighted(nil).Sample([]float32{inf, inf})
	assert.Error(t, err)

	seed := uint64(42)
	logits := []float32{1, 2, 3, 4}
	a, err := Weighted(&seed).Sample(logits)
	require.NoError(t, err)
	b, err := Weighted(&seed).Sample(logits)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed, same draw")
}

func TestWeightedTopK(t *testing.T) {
	seed := uint64(7)
	s := Weighted(&seed, Temperature(1), TopK(1))
	for i := 0; i < 20; i++ {
		idx, err := s.Sample([]float32{0.5, 0.1, 3, 0.2})
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
	}
}

func TestTemperature(t *testing.T) {
	got, err := Temperature(0.5).Apply([]float64{1, 4, -2, 0})
	require.NoError(t, err)
	want := []float64{-6, 0, -12, -8}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("temperature mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []Temperature{0, -1, 3} {
		_, err = bad.Apply([]float64{1, 2})
		assert.Error(t, err, "%v", float64(bad))
	}
}

func TestTopK(t *testing.T) {
	got, err := TopK(2).Apply([]float64{1, 4, -2, 3})
	require.NoError(t, err)
	inf := math.Inf(-1)
	want := []float64{inf, 4, inf, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("topk mismatch (-want +got):\n%s", diff)
	}

	got, err = TopK(10).Apply([]float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	_, err = TopK(0).Apply([]float64{1})
	assert.Error(t, err)
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float64{1, -2, 3, 0})
	want := []float64{0.113550, 0.005653, 0.839024, 0.041773}
	assert.InDeltaSlice(t, want, probs, 1e-6)
}
