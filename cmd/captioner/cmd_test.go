package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorgonia/captioner/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyConf = `
model_name: %s
batch_size: 2
img_dim: 3
embed_dim: 4
hidden_dim: 4
layers: 1
dropout_rate: 1
max_epochs: 1
shuffle: false
max_caption_len: 4
render_gif: true
`

func writeData(t *testing.T, dir string) {
	d := &dataset.Data{
		Index2Token: map[int]string{0: "<start>", 1: "<end>", 2: "a", 3: "dog"},
		Train: &dataset.Corpus{
			Captions:    []int{1, 2},
			ID2Sentence: map[int][]int{1: {0, 2, 3, 1}, 2: {0, 3, 1}},
			ID2ImageID:  map[int]int{1: 7, 2: 8},
		},
		TrainImages: dataset.Features{7: {1, 0, 0}, 8: {0, 1, 0}},
		ValImages:   dataset.Features{9: {0, 0, 1}},
	}
	require.NoError(t, dataset.Save(dir, d))
}

func run(t *testing.T, args ...string) (string, error) {
	cmd := NewCLI()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainAndCaption(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir)
	modelDir := filepath.Join(dir, "out")
	confFile := filepath.Join(dir, "conf.yaml")
	conf := strings.Replace(tinyConf, "%s", modelDir, 1)
	require.NoError(t, os.WriteFile(confFile, []byte(conf), 0644))

	_, err := run(t, "train", "--data", dir, "--config", confFile)
	require.NoError(t, err)
	for _, f := range []string{"weights/model-0.gob", "loss/loss_history.csv", "results/val_res_0.json", "results/val_res_0.gif", "run.yaml"} {
		_, err := os.Stat(filepath.Join(modelDir, f))
		assert.NoError(t, err, f)
	}

	out, err := run(t, "caption", "--data", dir, "--weights", filepath.Join(modelDir, "weights", "model-0.gob"), "--max-len", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "IMAGE")
	assert.Contains(t, out, "9")

	_, err = run(t, "caption", "--data", dir)
	assert.Error(t, err, "weights are required")
}

func TestGraph(t *testing.T) {
	out, err := run(t, "graph", "--vocab-size", "12")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph G"))
	assert.Contains(t, out, "lstm0")
}
