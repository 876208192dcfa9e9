package main

import (
	"log"
	"net/http"
	_ "net/http/pprof"
	"sort"
	"strconv"

	"github.com/gorgonia/captioner"
	"github.com/gorgonia/captioner/capnet"
	"github.com/gorgonia/captioner/dataset"
	"github.com/gorgonia/captioner/encoding/gif"
	"github.com/gorgonia/captioner/vocab"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	gifHeight = 240
	gifWidth  = 640
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "captioner",
		Short:         "Image captioning with a CNN feature encoder and an LSTM decoder",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	cobra.EnableCommandSorting = false

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on preprocessed captions and image features",
		Args:  cobra.NoArgs,
		RunE:  TrainHandler,
	}
	trainCmd.Flags().String("data", ".", "Directory holding the preprocessed inputs")
	trainCmd.Flags().String("config", "", "YAML config file (defaults are used if empty)")
	trainCmd.Flags().Int("epochs", 0, "Override max_epochs")
	trainCmd.Flags().String("pprof", "", "Serve pprof on this address while training")

	captionCmd := &cobra.Command{
		Use:   "caption",
		Short: "Caption the validation images with a trained model",
		Args:  cobra.NoArgs,
		RunE:  CaptionHandler,
	}
	captionCmd.Flags().String("data", ".", "Directory holding the preprocessed inputs")
	captionCmd.Flags().String("weights", "", "Parameter snapshot to load")
	captionCmd.Flags().Bool("sample", false, "Sample from the softmax instead of taking the arg max")
	captionCmd.Flags().Float64("temperature", 0, "Sampling temperature (0 to disable)")
	captionCmd.Flags().Int("top-k", 0, "Sample from the k most likely tokens only (0 to disable)")
	captionCmd.Flags().Uint64("seed", 0, "Sampling seed")
	captionCmd.Flags().Int("max-len", captioner.DefaultMaxTokens, "Maximum number of generated tokens")
	captionCmd.MarkFlagRequired("weights")

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the network architecture in Graphviz dot format",
		Args:  cobra.NoArgs,
		RunE:  GraphHandler,
	}
	graphCmd.Flags().String("config", "", "YAML config file (defaults are used if empty)")
	graphCmd.Flags().Int("vocab-size", 1000, "Vocabulary size")

	rootCmd.AddCommand(trainCmd, captionCmd, graphCmd)
	return rootCmd
}

func loadConfig(cmd *cobra.Command, vocabSize int) (captioner.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return captioner.DefaultConfig(vocabSize), nil
	}
	return captioner.LoadConfig(path, vocabSize)
}

func loadData(cmd *cobra.Command) (*dataset.Data, *vocab.Vocab, error) {
	dir, _ := cmd.Flags().GetString("data")
	data, err := dataset.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	v, err := vocab.New(data.Index2Token)
	if err != nil {
		return nil, nil, err
	}
	return data, v, nil
}

func TrainHandler(cmd *cobra.Command, _ []string) error {
	data, v, err := loadData(cmd)
	if err != nil {
		return err
	}
	conf, err := loadConfig(cmd, v.Size())
	if err != nil {
		return err
	}
	if epochs, _ := cmd.Flags().GetInt("epochs"); epochs > 0 {
		conf.MaxEpochs = epochs
	}

	if addr, _ := cmd.Flags().GetString("pprof"); addr != "" {
		go func() {
			log.Printf("pprof on http://%s/debug/pprof", addr)
			log.Println(http.ListenAndServe(addr, nil))
		}()
	}

	t, err := captioner.NewTrainer(conf, v, data)
	if err != nil {
		return err
	}
	defer t.Close()
	t.Logger = log.New(cmd.ErrOrStderr(), "["+t.RunID.String()[:8]+"] ", log.Ltime)
	if conf.RenderGIF {
		t.Output = captioner.MultiOutput{t.Output, gif.NewEncoder(conf.Name, gifHeight, gifWidth)}
	}
	return t.Run(cmd.Context())
}

func CaptionHandler(cmd *cobra.Command, _ []string) error {
	data, v, err := loadData(cmd)
	if err != nil {
		return err
	}
	weights, _ := cmd.Flags().GetString("weights")
	m := new(capnet.Model)
	if err = captioner.LoadParams(weights, m); err != nil {
		return err
	}
	defer m.Close()
	if m.VocabSize != v.Size() {
		return errors.WithStack(capnet.ShapeMismatchError{What: "vocabulary size", Want: v.Size(), Got: m.VocabSize})
	}

	var conf captioner.Config
	conf.Sample, _ = cmd.Flags().GetBool("sample")
	conf.Temperature, _ = cmd.Flags().GetFloat64("temperature")
	conf.TopK, _ = cmd.Flags().GetInt("top-k")
	seed, _ := cmd.Flags().GetUint64("seed")
	conf.Seed = int64(seed)
	maxLen, _ := cmd.Flags().GetInt("max-len")

	g := &captioner.Generator{Model: m, Vocab: v, Sampler: conf.Sampler(), MaxTokens: maxLen}

	images := data.ValImages
	if len(images) == 0 {
		images = data.TrainImages
	}
	ids := make([]int, 0, len(images))
	for id := range images {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var rows [][]string
	for _, id := range ids {
		caption, err := g.Generate(images[id])
		if err != nil {
			return errors.WithMessagef(err, "image %d", id)
		}
		rows = append(rows, []string{strconv.Itoa(id), caption})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"IMAGE", "CAPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
	return nil
}

func GraphHandler(cmd *cobra.Command, _ []string) error {
	vocabSize, _ := cmd.Flags().GetInt("vocab-size")
	conf, err := loadConfig(cmd, vocabSize)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write([]byte(capnet.New(conf.NNConf).ToDot()))
	return errors.WithStack(err)
}
