package capnet

// Config configures the caption network
type Config struct {
	BatchSize int     // batch size
	ImgDim    int     // image feature width
	EmbedDim  int     // token and image embedding width
	HiddenDim int     // LSTM width
	Layers    int     // number of stacked LSTM cells
	KeepProb  float64 // dropout keep-probability on the LSTM inputs and outputs
	VocabSize int

	LearnRate  float64 // Adam step size
	GraphCache int     // number of unrolled graphs kept per cache (training and evaluation are cached apart)
}

func DefaultConf(vocabSize int) Config {
	return Config{
		BatchSize: 100,
		ImgDim:    4096,
		EmbedDim:  512,
		HiddenDim: 512,
		Layers:    1,
		KeepProb:  0.75,
		VocabSize: vocabSize,

		LearnRate:  0.001,
		GraphCache: 8,
	}
}

func (conf Config) IsValid() bool {
	return conf.BatchSize >= 1 &&
		conf.ImgDim >= 1 &&
		conf.EmbedDim >= 1 &&
		conf.HiddenDim >= 1 &&
		conf.Layers >= 1 &&
		conf.KeepProb > 0 && conf.KeepProb <= 1 &&
		conf.VocabSize >= 2 && // at least the start and end markers
		conf.LearnRate > 0 &&
		conf.GraphCache >= 1
}

// sameShape reports whether two configs describe the same set of parameters.
func (conf Config) sameShape(other Config) bool {
	return conf.ImgDim == other.ImgDim &&
		conf.EmbedDim == other.EmbedDim &&
		conf.HiddenDim == other.HiddenDim &&
		conf.Layers == other.Layers &&
		conf.VocabSize == other.VocabSize
}
