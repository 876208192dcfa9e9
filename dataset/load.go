package dataset

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Files produced by the preprocessing pipeline.
const (
	VocabFile       = "index2token.gob"
	TrainFile       = "train_captions.gob"
	TrainImagesFile = "train_image_features.gob"
	ValImagesFile   = "val_image_features.gob"
)

// Data is everything the preprocessing pipeline leaves on disk.
type Data struct {
	Index2Token map[int]string
	Train       *Corpus
	TrainImages Features
	ValImages   Features // nil if there is no validation file
}

// Load reads the preprocessed inputs from dir.
func Load(dir string) (*Data, error) {
	d := &Data{Train: new(Corpus)}
	if err := readGob(filepath.Join(dir, VocabFile), &d.Index2Token); err != nil {
		return nil, err
	}
	if err := readGob(filepath.Join(dir, TrainFile), d.Train); err != nil {
		return nil, err
	}
	if err := readGob(filepath.Join(dir, TrainImagesFile), &d.TrainImages); err != nil {
		return nil, err
	}

	valPath := filepath.Join(dir, ValImagesFile)
	if _, err := os.Stat(valPath); err == nil {
		if err := readGob(valPath, &d.ValImages); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Save writes d into dir using the same layout Load reads.
func Save(dir string, d *Data) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.WithStack(err)
	}
	if err := writeGob(filepath.Join(dir, VocabFile), d.Index2Token); err != nil {
		return err
	}
	if err := writeGob(filepath.Join(dir, TrainFile), d.Train); err != nil {
		return err
	}
	if err := writeGob(filepath.Join(dir, TrainImagesFile), d.TrainImages); err != nil {
		return err
	}
	if d.ValImages != nil {
		return writeGob(filepath.Join(dir, ValImagesFile), d.ValImages)
	}
	return nil
}

func readGob(filename string, v interface{}) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	if err = gob.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "unable to decode %v", filename)
	}
	return nil
}

func writeGob(filename string, v interface{}) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	if err = gob.NewEncoder(f).Encode(v); err != nil {
		return errors.Wrapf(err, "unable to encode %v", filename)
	}
	return f.Close()
}
