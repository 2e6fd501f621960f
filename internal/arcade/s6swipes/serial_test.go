package s6swipes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialBridge_SendsCommandAndReadsAck(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.QueueResponse("OK\n")
	bridge := NewSerialBridge(port)

	steps := BuildSteps(testPath("trk_a", dispBase), 8)
	require.NoError(t, bridge.Inject(context.Background(), steps))

	// Endpoints and stroke time, not the interpolated steps, go on the wire.
	assert.Equal(t, "SW 340 460 460 460 20\n", port.Written())
}

func TestSerialBridge_BadAck(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.QueueResponse("ERR busy\n")
	bridge := NewSerialBridge(port)

	err := bridge.Inject(context.Background(), BuildSteps(testPath("trk_a", dispBase), 8))
	require.ErrorIs(t, err, ErrBadAck)
	assert.ErrorContains(t, err, "ERR busy")
}

func TestSerialBridge_WriteFailure(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.WriteError = errors.New("unplugged")
	bridge := NewSerialBridge(port)

	err := bridge.Inject(context.Background(), BuildSteps(testPath("trk_a", dispBase), 8))
	require.ErrorIs(t, err, ErrPortWrite)
}

func TestSerialBridge_ShortWrite(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.ShortWrite = 5
	bridge := NewSerialBridge(port)

	err := bridge.Inject(context.Background(), BuildSteps(testPath("trk_a", dispBase), 8))
	require.ErrorIs(t, err, ErrPortWrite)
}

func TestSerialBridge_ReadFailure(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	port.ReadError = errors.New("io timeout")
	bridge := NewSerialBridge(port)

	err := bridge.Inject(context.Background(), BuildSteps(testPath("trk_a", dispBase), 8))
	require.Error(t, err)
	assert.ErrorContains(t, err, "read bridge ack")
}

func TestSerialBridge_TooFewSteps(t *testing.T) {
	t.Parallel()

	bridge := NewSerialBridge(NewTestablePort())

	err := bridge.Inject(context.Background(), []Step{{}})
	require.Error(t, err)
	assert.ErrorContains(t, err, "press and release")
}

func TestSerialBridge_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	port := NewTestablePort()
	bridge := NewSerialBridge(port)

	err := bridge.Inject(ctx, BuildSteps(testPath("trk_a", dispBase), 8))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, port.WriteCalls)
}

func TestSerialBridge_Close(t *testing.T) {
	t.Parallel()

	port := NewTestablePort()
	bridge := NewSerialBridge(port)

	require.NoError(t, bridge.Close())
	assert.True(t, port.Closed)
}
