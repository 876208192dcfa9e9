package captioner

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLossHistory(t *testing.T) {
	h := LossHistory{4, 2, 3}
	assert.Equal(t, float32(3), h.Mean())
	assert.Equal(t, float32(0), LossHistory(nil).Mean())

	var buf bytes.Buffer
	require.NoError(t, h.Dump(&buf))
	assert.Equal(t, "step,loss\n0,4\n1,2\n2,3\n", buf.String())

	got, err := ReadLossHistory(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("loss history mismatch (-want +got):\n%s", diff)
	}

	_, err = ReadLossHistory(bytes.NewBufferString(""))
	assert.Error(t, err)
}

func TestLossHistoryExact(t *testing.T) {
	h := LossHistory{0.000042, 1.23456789, 1e-9, 3601.5}
	var buf bytes.Buffer
	require.NoError(t, h.Dump(&buf))

	got, err := ReadLossHistory(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(h, got); diff != "" {
		t.Errorf("loss history mismatch (-want +got):\n%s", diff)
	}
}
