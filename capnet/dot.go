package capnet

import (
	"fmt"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// ToDot renders the architecture of the network (not the unrolled expression graph) as a Graphviz digraph.
func (m *Model) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	node := func(name, label string) {
		attrs := map[string]string{
			"shape": "box",
			"label": strconv.Quote(label),
		}
		if err := g.AddNode("G", name, attrs); err != nil {
			panic(err)
		}
	}
	edge := func(src, dst string) {
		if err := g.AddEdge(src, dst, true, nil); err != nil {
			panic(err)
		}
	}

	node("images", fmt.Sprintf("images (%d×%d)", m.BatchSize, m.ImgDim))
	node("encoder", fmt.Sprintf("sigmoid(images·W_i + b_i) (%d×%d)", m.ImgDim, m.EmbedDim))
	node("words", fmt.Sprintf("tokens (%d×steps)", m.BatchSize))
	node("embedding", fmt.Sprintf("word_embeddings (%d×%d)", m.VocabSize, m.EmbedDim))
	edge("images", "encoder")
	edge("words", "embedding")

	prev := []string{"encoder", "embedding"}
	for l := 0; l < m.Layers; l++ {
		name := fmt.Sprintf("lstm%d", l)
		node(name, fmt.Sprintf("LSTM %d (%d units, keep %v)", l, m.HiddenDim, m.KeepProb))
		for _, p := range prev {
			edge(p, name)
		}
		prev = []string{name}
	}
	node("softmax", fmt.Sprintf("softmax_w·h + softmax_b (%d×%d)", m.HiddenDim, m.VocabSize))
	node("loss", "Σ sparse softmax cross entropy")
	edge(prev[0], "softmax")
	edge("softmax", "loss")
	return g.String()
}
