package captioner

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorgonia/captioner/capnet"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	weightsDir   = "weights"
	lossDir      = "loss"
	resultsDir   = "results"
	lossFile     = "loss_history.csv"
	ManifestFile = "run.yaml"
)

// DirCheckpointer writes checkpoints under Dir:
//
//	weights/model-<epoch>.gob
//	loss/loss_history.csv
type DirCheckpointer struct {
	Dir string
}

// ParamsFile is the snapshot file of the given epoch.
func (c *DirCheckpointer) ParamsFile(epoch int) string {
	return filepath.Join(c.Dir, weightsDir, fmt.Sprintf("model-%d.gob", epoch))
}

// LossFile is the loss history file.
func (c *DirCheckpointer) LossFile() string { return filepath.Join(c.Dir, lossDir, lossFile) }

// SaveParams writes a new snapshot for the epoch. Snapshots of other epochs are left alone.
func (c *DirCheckpointer) SaveParams(epoch int, m *capnet.Model) error {
	f, err := create(c.ParamsFile(epoch))
	if err != nil {
		return err
	}
	if err = gob.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return errors.Wrapf(err, "saving epoch %d", epoch)
	}
	return errors.WithStack(f.Close())
}

// SaveLossHistory rewrites the loss history file with the whole of h.
func (c *DirCheckpointer) SaveLossHistory(h LossHistory) error {
	f, err := create(c.LossFile())
	if err != nil {
		return err
	}
	if err = h.Dump(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}

// LoadParams decodes the snapshot of the given epoch into m. See capnet.Model.GobDecode.
func (c *DirCheckpointer) LoadParams(epoch int, m *capnet.Model) error {
	return LoadParams(c.ParamsFile(epoch), m)
}

// LoadParams decodes a snapshot file into m.
func LoadParams(filename string, m *capnet.Model) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	if err = gob.NewDecoder(f).Decode(m); err != nil {
		return errors.Wrapf(err, "loading %v", filename)
	}
	return nil
}

// Manifest describes a training run.
type Manifest struct {
	RunID   uuid.UUID  `yaml:"run_id"`
	Started time.Time  `yaml:"started"`
	Config  fileConfig `yaml:"config"`
}

// WriteManifest writes the manifest to <dir>/run.yaml.
func WriteManifest(dir string, m Manifest) error {
	out, err := yaml.Marshal(m)
	if err != nil {
		return errors.WithStack(err)
	}
	f, err := create(filepath.Join(dir, ManifestFile))
	if err != nil {
		return err
	}
	if _, err = f.Write(out); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}

// ReadManifest reads <dir>/run.yaml.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, errors.WithStack(err)
	}
	return m, errors.WithStack(yaml.Unmarshal(data, &m))
}

func create(filename string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	return f, errors.WithStack(err)
}
