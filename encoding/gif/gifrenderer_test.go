package gif

import (
	"bytes"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorgonia/captioner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder("", 200, 300)
	enc.Writer = &buf

	require.NoError(t, enc.Encode(captioner.Result{Epoch: 1, ImageID: 4, Caption: "a dog"}))
	require.NoError(t, enc.Encode(captioner.Result{Epoch: 1, ImageID: 5, Caption: "a very long caption about a dog that runs across a very green field"}))
	require.NoError(t, enc.Encode(captioner.Result{Epoch: 1, ImageID: 6}))
	assert.Error(t, enc.Encode(captioner.Result{Epoch: 2, ImageID: 6}))
	require.NoError(t, enc.Flush())

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Len(t, g.Image, 3)
	assert.Equal(t, 300, g.Config.Width)
	assert.Equal(t, 200, g.Config.Height)

	// flushed frames are not written twice
	buf.Reset()
	require.NoError(t, enc.Flush())
	assert.Equal(t, 0, buf.Len())
}

func TestEncoderFile(t *testing.T) {
	dir := t.TempDir()
	enc := NewEncoder(dir, 100, 200)
	require.NoError(t, enc.Encode(captioner.Result{Epoch: 3, ImageID: 1, Caption: "a cat"}))
	require.NoError(t, enc.Flush())

	f, err := os.Open(filepath.Join(dir, "results", "val_res_3.gif"))
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 1)
}

func TestWrap(t *testing.T) {
	enc := NewEncoder("", 100, 150)
	lines := enc.wrap("one two three four five six seven eight")
	assert.True(t, len(lines) > 1)
	for _, l := range lines {
		assert.NotEmpty(t, l)
	}
	assert.Empty(t, enc.wrap(""))
}
