package captioner

import (
	"os"

	"github.com/gorgonia/captioner/capnet"
	"github.com/gorgonia/captioner/sample"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration of a training run.
type Config struct {
	Name      string // output directory
	NNConf    capnet.Config
	MaxEpochs int

	Shuffle  bool  // shuffle the captions every epoch
	Seed     int64 // shuffling and sampling seed
	LogEvery int   // report progress every LogEvery steps

	// validation decoding
	MaxCaptionLen int
	Sample        bool // draw from the softmax instead of taking the arg max
	Temperature   float64
	TopK          int
	RenderGIF     bool
}

// DefaultConfig returns the default configuration for a vocabulary of the given size.
func DefaultConfig(vocabSize int) Config {
	return Config{
		Name:      "model",
		NNConf:    capnet.DefaultConf(vocabSize),
		MaxEpochs: 30,

		Shuffle:  true,
		LogEvery: 50,

		MaxCaptionLen: 50,
	}
}

func (c Config) IsValid() bool {
	return c.Name != "" &&
		c.NNConf.IsValid() &&
		c.MaxEpochs >= 1 &&
		c.LogEvery >= 1 &&
		c.MaxCaptionLen >= 1 &&
		c.Temperature >= 0 && c.Temperature <= 2 &&
		c.TopK >= 0
}

// Sampler returns the decoding policy used for validation captions.
func (c Config) Sampler() sample.Sampler {
	if !c.Sample {
		return sample.Greedy()
	}
	var transforms []sample.Transform
	if c.Temperature > 0 {
		transforms = append(transforms, sample.Temperature(c.Temperature))
	}
	if c.TopK > 0 {
		transforms = append(transforms, sample.TopK(c.TopK))
	}
	seed := uint64(c.Seed)
	return sample.Weighted(&seed, transforms...)
}

// fileConfig is the on-disk layout of a Config.
type fileConfig struct {
	ModelName   string  `yaml:"model_name"`
	BatchSize   int     `yaml:"batch_size"`
	ImgDim      int     `yaml:"img_dim"`
	EmbedDim    int     `yaml:"embed_dim"`
	HiddenDim   int     `yaml:"hidden_dim"`
	Layers      int     `yaml:"layers"`
	DropoutRate float64 `yaml:"dropout_rate"` // keep-probability
	LearnRate   float64 `yaml:"learning_rate"`
	GraphCache  int     `yaml:"graph_cache"`
	MaxEpochs   int     `yaml:"max_epochs"`

	Shuffle       bool    `yaml:"shuffle"`
	Seed          int64   `yaml:"seed"`
	LogEvery      int     `yaml:"log_every"`
	MaxCaptionLen int     `yaml:"max_caption_len"`
	Sample        bool    `yaml:"sample"`
	Temperature   float64 `yaml:"temperature"`
	TopK          int     `yaml:"top_k"`
	RenderGIF     bool    `yaml:"render_gif"`
}

func toFile(c Config) fileConfig {
	return fileConfig{
		ModelName:     c.Name,
		BatchSize:     c.NNConf.BatchSize,
		ImgDim:        c.NNConf.ImgDim,
		EmbedDim:      c.NNConf.EmbedDim,
		HiddenDim:     c.NNConf.HiddenDim,
		Layers:        c.NNConf.Layers,
		DropoutRate:   c.NNConf.KeepProb,
		LearnRate:     c.NNConf.LearnRate,
		GraphCache:    c.NNConf.GraphCache,
		MaxEpochs:     c.MaxEpochs,
		Shuffle:       c.Shuffle,
		Seed:          c.Seed,
		LogEvery:      c.LogEvery,
		MaxCaptionLen: c.MaxCaptionLen,
		Sample:        c.Sample,
		Temperature:   c.Temperature,
		TopK:          c.TopK,
		RenderGIF:     c.RenderGIF,
	}
}

func (f fileConfig) config(vocabSize int) Config {
	return Config{
		Name: f.ModelName,
		NNConf: capnet.Config{
			BatchSize:  f.BatchSize,
			ImgDim:     f.ImgDim,
			EmbedDim:   f.EmbedDim,
			HiddenDim:  f.HiddenDim,
			Layers:     f.Layers,
			KeepProb:   f.DropoutRate,
			VocabSize:  vocabSize,
			LearnRate:  f.LearnRate,
			GraphCache: f.GraphCache,
		},
		MaxEpochs:     f.MaxEpochs,
		Shuffle:       f.Shuffle,
		Seed:          f.Seed,
		LogEvery:      f.LogEvery,
		MaxCaptionLen: f.MaxCaptionLen,
		Sample:        f.Sample,
		Temperature:   f.Temperature,
		TopK:          f.TopK,
		RenderGIF:     f.RenderGIF,
	}
}

// ParseConfig resolves a YAML document over the defaults. Keys that are absent keep their default.
func ParseConfig(data []byte, vocabSize int) (Config, error) {
	f := toFile(DefaultConfig(vocabSize))
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, errors.Wrap(err, "unable to parse config")
	}
	conf := f.config(vocabSize)
	if !conf.IsValid() {
		return conf, errors.Errorf("invalid config %+v", conf)
	}
	return conf, nil
}

// LoadConfig reads a YAML config file. The vocabulary size comes from the data, not the file.
func LoadConfig(path string, vocabSize int) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	return ParseConfig(data, vocabSize)
}

// MarshalConfig renders c in the layout LoadConfig reads.
func MarshalConfig(c Config) ([]byte, error) {
	out, err := yaml.Marshal(toFile(c))
	return out, errors.WithStack(err)
}
