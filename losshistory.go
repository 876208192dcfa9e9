package captioner

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// LossHistory is the loss of every training step, in order.
type LossHistory []float32

// Mean is the mean loss. It is 0 for an empty history.
func (h LossHistory) Mean() float32 {
	if len(h) == 0 {
		return 0
	}
	return vecf32.Sum(h) / float32(len(h))
}

// Dump writes the history as CSV: a header, then one (step, loss) record per step.
func (h LossHistory) Dump(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "loss"}); err != nil {
		return errors.WithStack(err)
	}
	records := make([][]string, 0, len(h))
	for i, loss := range h {
		records = append(records, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(loss), 'g', -1, 32),
		})
	}
	// WriteAll flushes
	return errors.WithStack(cw.WriteAll(records))
}

// ReadLossHistory reads back what Dump wrote.
func ReadLossHistory(r io.Reader) (LossHistory, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty loss history")
	}
	retVal := make(LossHistory, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 2 {
			return nil, errors.Errorf("malformed loss record %v", rec)
		}
		f, err := strconv.ParseFloat(rec[1], 32)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		retVal = append(retVal, float32(f))
	}
	return retVal, nil
}
