package captioner

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorgonia/captioner/capnet"
	"github.com/gorgonia/captioner/dataset"
	"github.com/gorgonia/captioner/vocab"
	"github.com/pkg/errors"
)

// State is the state of a training run.
type State int

const (
	Idle State = iota
	Training
	Checkpointing
	Validating
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Training:
		return "Training"
	case Checkpointing:
		return "Checkpointing"
	case Validating:
		return "Validating"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// prefetchDepth is the number of batches prepared ahead of the training step.
const prefetchDepth = 2

// Trainer is the entry point of training. Every epoch trains on one full pass over the
// training captions, checkpoints, then captions the validation images.
type Trainer struct {
	Config
	RunID uuid.UUID

	Model     *capnet.Model
	Vocab     *vocab.Vocab
	Generator *Generator

	// io
	Checkpointer Checkpointer
	Output       OutputEncoder // may be nil
	Logger       Reporter

	// OnState, if set, is called on every state change.
	OnState func(s State, epoch int)

	corpus    *dataset.Corpus
	images    dataset.Features
	valImages dataset.Features

	state   State
	epoch   int
	history LossHistory
}

// NewTrainer creates a trainer with a freshly initialized model. The checkpoints and the
// validation results go under conf.Name.
func NewTrainer(conf Config, v *vocab.Vocab, data *dataset.Data) (*Trainer, error) {
	if conf.NNConf.VocabSize == 0 {
		conf.NNConf.VocabSize = v.Size()
	}
	if conf.NNConf.VocabSize != v.Size() {
		return nil, errors.WithStack(capnet.ShapeMismatchError{What: "vocabulary size", Want: v.Size(), Got: conf.NNConf.VocabSize})
	}
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid config %+v", conf)
	}
	if data.Train == nil {
		return nil, errors.New("no training captions")
	}
	if dim := data.TrainImages.Dim(); dim != conf.NNConf.ImgDim {
		return nil, errors.WithStack(capnet.ShapeMismatchError{What: "image features", Want: conf.NNConf.ImgDim, Got: dim})
	}

	m := capnet.New(conf.NNConf)
	if err := m.Init(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	return &Trainer{
		Config: conf,
		RunID:  runID,
		Model:  m,
		Vocab:  v,
		Generator: &Generator{
			Model:     m,
			Vocab:     v,
			Sampler:   conf.Sampler(),
			MaxTokens: conf.MaxCaptionLen,
		},
		Checkpointer: &DirCheckpointer{Dir: conf.Name},
		Output:       NewJSONResults(conf.Name),
		Logger:       log.New(os.Stderr, fmt.Sprintf("[%s] ", runID.String()[:8]), log.Ltime),

		corpus:    data.Train,
		images:    data.TrainImages,
		valImages: data.ValImages,
	}, nil
}

// State returns the current state of the run.
func (t *Trainer) State() State { return t.state }

// Epoch returns the current epoch, counting from 0.
func (t *Trainer) Epoch() int { return t.epoch }

// History returns the loss of every training step so far.
func (t *Trainer) History() LossHistory { return t.history }

func (t *Trainer) setState(s State) {
	t.state = s
	if t.OnState != nil {
		t.OnState(s, t.epoch)
	}
}

// Run trains for MaxEpochs epochs. Any error aborts the run: a failing training step,
// a NaN loss, or a failure to write a checkpoint or the validation results.
// The context is checked between batches; a batch in progress is never interrupted.
func (t *Trainer) Run(ctx context.Context) error {
	start := time.Now()
	if err := WriteManifest(t.Name, Manifest{RunID: t.RunID, Started: start, Config: toFile(t.Config)}); err != nil {
		return errors.WithMessage(err, "unable to write the run manifest")
	}

	for t.epoch = 0; t.epoch < t.MaxEpochs; t.epoch++ {
		t.Logger.Printf("Epoch %d", t.epoch+1)
		t.setState(Training)
		losses, err := t.trainEpoch(ctx)
		t.history = append(t.history, losses...)
		if err != nil {
			return errors.WithMessage(err, fmt.Sprintf("epoch %d", t.epoch))
		}
		t.Logger.Printf("Average loss: %.1f", losses.Mean())

		t.setState(Checkpointing)
		if err = t.Checkpointer.SaveParams(t.epoch, t.Model); err != nil {
			return errors.WithMessage(err, "unable to save the parameters")
		}
		if err = t.Checkpointer.SaveLossHistory(t.history); err != nil {
			return errors.WithMessage(err, "unable to save the loss history")
		}

		t.setState(Validating)
		if err = t.validate(); err != nil {
			return errors.WithMessage(err, "validation failed")
		}
	}
	t.epoch = t.MaxEpochs - 1 // last epoch trained
	t.setState(Done)
	t.Logger.Printf("Finished %d epochs in %v", t.MaxEpochs, time.Since(start).Round(time.Second))
	return nil
}

func (t *Trainer) trainEpoch(ctx context.Context) (LossHistory, error) {
	it := dataset.IterateCorpus(t.corpus, t.images, dataset.Config{
		BatchSize: t.NNConf.BatchSize,
		PadID:     t.Vocab.End(),
		Shuffle:   t.Shuffle,
		Seed:      t.Seed + int64(t.epoch),
	})
	total := it.Len()
	if total == 0 {
		return nil, errors.Errorf("%d captions do not fill a batch of %d", len(t.corpus.Captions), t.NNConf.BatchSize)
	}

	start := time.Now()
	losses := make(LossHistory, 0, total)
	p := dataset.Prefetch(ctx, it, prefetchDepth)
	step := 0
	for b := range p.Batches() {
		loss, err := t.Model.TrainStep(b)
		if err != nil {
			p.Stop()
			return losses, errors.WithMessage(err, fmt.Sprintf("step %d", step))
		}
		losses = append(losses, loss)
		if step%t.LogEvery == 0 {
			t.Logger.Printf("%d/%d: loss = %.2f time elapsed = %d", step, total, losses.Mean(), int(time.Since(start).Seconds()))
		}
		step++
	}
	if err := p.Wait(); err != nil {
		return losses, err
	}
	if err := ctx.Err(); err != nil {
		return losses, errors.WithStack(err)
	}
	t.Logger.Printf("Total time: %ds", int(time.Since(start).Seconds()))
	return losses, nil
}

// validate captions every validation image, in image id order.
func (t *Trainer) validate() error {
	if t.Output == nil || len(t.valImages) == 0 {
		return nil
	}
	ids := make([]int, 0, len(t.valImages))
	for id := range t.valImages {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		caption, err := t.Generator.Generate(t.valImages[id])
		if err != nil {
			return errors.WithMessage(err, fmt.Sprintf("image %d", id))
		}
		if err = t.Output.Encode(Result{Epoch: t.epoch, ImageID: id, Caption: caption}); err != nil {
			return err
		}
	}
	return t.Output.Flush()
}

// Close releases the model.
func (t *Trainer) Close() error { return t.Model.Close() }
