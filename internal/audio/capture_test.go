package audio

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptureChunksAndFlushesTailOnStop(t *testing.T) {
	c := newCapture(Device{ID: "mic"}, 8)

	input := make([]byte, chunkSizeBytes+100)
	for i := range input {
		input[i] = byte(i)
	}

	n, err := c.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), c.BytesCaptured())

	first := <-c.Chunks()
	require.Equal(t, input[:chunkSizeBytes], first)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())

	tail, ok := <-c.Chunks()
	require.True(t, ok)
	require.Equal(t, input[chunkSizeBytes:], tail)

	_, ok = <-c.Chunks()
	require.False(t, ok)
}

func TestCaptureRejectsPCMAfterStop(t *testing.T) {
	c := newCapture(Device{ID: "mic"}, 1)
	require.NoError(t, c.Stop())

	n, err := c.onPCM([]byte{1, 2})
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, c.BytesCaptured())
	require.Equal(t, "mic", c.Device().ID)
}

func TestStartCaptureFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", missingPulse)
	_, err := StartCapture(context.Background(), Device{ID: "mic"})
	require.Error(t, err)
}
