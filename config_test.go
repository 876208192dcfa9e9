package captioner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig(100)
	if !conf.IsValid() {
		t.Errorf("Expected Default Config to be correct")
	}
	assert.Equal(t, 50, conf.MaxCaptionLen)
	assert.Equal(t, 50, conf.LogEvery)
	assert.Equal(t, 100, conf.NNConf.VocabSize)
}

const yamlConf = `
model_name: dogs
batch_size: 16
img_dim: 8
embed_dim: 6
hidden_dim: 10
layers: 2
dropout_rate: 0.5
max_epochs: 3
sample: true
top_k: 3
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConf), 0644))

	conf, err := LoadConfig(path, 7)
	require.NoError(t, err)
	assert.Equal(t, "dogs", conf.Name)
	assert.Equal(t, 16, conf.NNConf.BatchSize)
	assert.Equal(t, 8, conf.NNConf.ImgDim)
	assert.Equal(t, 6, conf.NNConf.EmbedDim)
	assert.Equal(t, 10, conf.NNConf.HiddenDim)
	assert.Equal(t, 2, conf.NNConf.Layers)
	assert.Equal(t, 0.5, conf.NNConf.KeepProb)
	assert.Equal(t, 7, conf.NNConf.VocabSize)
	assert.Equal(t, 3, conf.MaxEpochs)
	assert.True(t, conf.Sample)
	assert.Equal(t, 3, conf.TopK)

	// absent keys keep their defaults
	def := DefaultConfig(7)
	assert.Equal(t, def.NNConf.LearnRate, conf.NNConf.LearnRate)
	assert.Equal(t, def.MaxCaptionLen, conf.MaxCaptionLen)
	assert.Equal(t, def.Shuffle, conf.Shuffle)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), 7)
	assert.Error(t, err)
}

func TestParseConfigInvalid(t *testing.T) {
	for _, doc := range []string{
		"dropout_rate: 0",
		"layers: 0",
		"max_epochs: -1",
		"temperature: 5",
		"batch_size: [1, 2]",
	} {
		_, err := ParseConfig([]byte(doc), 7)
		assert.Error(t, err, doc)
	}
}

func TestMarshalConfig(t *testing.T) {
	conf := DefaultConfig(7)
	conf.Name = "cats"
	conf.Seed = 42
	out, err := MarshalConfig(conf)
	require.NoError(t, err)

	got, err := ParseConfig(out, 7)
	require.NoError(t, err)
	assert.Equal(t, conf, got)
}
