package captioner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// JSONResults writes the validation captions of an epoch to <Dir>/results/val_res_<epoch>.json,
// as a list of {"image_id", "caption"} objects ordered by image id.
type JSONResults struct {
	Dir string

	epoch   int
	results []Result
}

func NewJSONResults(dir string) *JSONResults { return &JSONResults{Dir: dir} }

// ResultsFile is the file the results of the epoch are written to.
func (j *JSONResults) ResultsFile(epoch int) string {
	return filepath.Join(j.Dir, resultsDir, fmt.Sprintf("val_res_%d.json", epoch))
}

func (j *JSONResults) Encode(r Result) error {
	if len(j.results) > 0 && r.Epoch != j.epoch {
		return errors.Errorf("result of epoch %d encoded before epoch %d was flushed", r.Epoch, j.epoch)
	}
	j.epoch = r.Epoch
	j.results = append(j.results, r)
	return nil
}

// Flush writes the pending results. It does nothing if there are none.
func (j *JSONResults) Flush() error {
	if len(j.results) == 0 {
		return nil
	}
	sort.SliceStable(j.results, func(a, b int) bool { return j.results[a].ImageID < j.results[b].ImageID })

	f, err := create(j.ResultsFile(j.epoch))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(j.results); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	j.results = j.results[:0]
	return errors.WithStack(f.Close())
}

// ReadResults reads a results file back.
func ReadResults(filename string) ([]Result, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var retVal []Result
	if err = json.Unmarshal(data, &retVal); err != nil {
		return nil, errors.Wrapf(err, "reading %v", filename)
	}
	return retVal, nil
}
