package captioner

import (
	"github.com/gorgonia/captioner/capnet"
)

// Reporter is anything that progress can be reported to. *log.Logger is a Reporter.
type Reporter interface {
	Printf(format string, v ...interface{})
}

// LogitModel is anything that can score the next token of a partial caption.
// *capnet.Model is a LogitModel.
type LogitModel interface {
	NextLogits(image []float32, seq []int) ([]float32, error)
}

// Checkpointer persists the model parameters and the loss history.
type Checkpointer interface {
	SaveParams(epoch int, m *capnet.Model) error
	SaveLossHistory(h LossHistory) error
}

// OutputEncoder collects the validation captions of an epoch. Flush is called once all of the
// epoch's results have been encoded.
//
// JSONResults is the default OutputEncoder. Another example is the GIF encoder in encoding/gif.
type OutputEncoder interface {
	Encode(r Result) error
	Flush() error
}

// Result is a caption generated for a validation image.
type Result struct {
	Epoch   int    `json:"-"`
	ImageID int    `json:"image_id"`
	Caption string `json:"caption"`
}

// MultiOutput encodes every result to all of its encoders.
type MultiOutput []OutputEncoder

func (m MultiOutput) Encode(r Result) error {
	for _, enc := range m {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiOutput) Flush() error {
	for _, enc := range m {
		if err := enc.Flush(); err != nil {
			return err
		}
	}
	return nil
}
