package captioner

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	results []Result
	flushes int
}

func (r *recorder) Encode(res Result) error { r.results = append(r.results, res); return nil }
func (r *recorder) Flush() error            { r.flushes++; return nil }

func TestJSONResults(t *testing.T) {
	dir := t.TempDir()
	j := NewJSONResults(dir)

	// nothing to write
	require.NoError(t, j.Flush())
	_, err := os.Stat(j.ResultsFile(0))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, j.Encode(Result{Epoch: 3, ImageID: 9, Caption: "a dog"}))
	require.NoError(t, j.Encode(Result{Epoch: 3, ImageID: 2, Caption: "a cat"}))
	assert.Error(t, j.Encode(Result{Epoch: 4, ImageID: 1}))
	require.NoError(t, j.Flush())

	got, err := ReadResults(j.ResultsFile(3))
	require.NoError(t, err)
	assert.Equal(t, []Result{{ImageID: 2, Caption: "a cat"}, {ImageID: 9, Caption: "a dog"}}, got)

	require.NoError(t, j.Encode(Result{Epoch: 4, ImageID: 1, Caption: ""}))
	require.NoError(t, j.Flush())
	got, err = ReadResults(j.ResultsFile(4))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMultiOutput(t *testing.T) {
	a, b := new(recorder), new(recorder)
	m := MultiOutput{a, b}
	require.NoError(t, m.Encode(Result{ImageID: 1, Caption: "a"}))
	require.NoError(t, m.Flush())
	assert.Len(t, a.results, 1)
	assert.Len(t, b.results, 1)
	assert.Equal(t, 1, a.flushes)
	assert.Equal(t, 1, b.flushes)
}
