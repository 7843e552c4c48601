package pty

import (
	"strings"
	"testing"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenClose(t *testing.T) {
	ch, err := Open()
	require.NoError(t, err)
	require.NotNil(t, ch)

	assert.NoError(t, ch.Close())
	// Close is idempotent
	assert.NoError(t, ch.Close())
}

func TestReadTimeout(t *testing.T) {
	ch, err := Open()
	require.NoError(t, err)
	defer ch.Close()

	start := time.Now()
	data, err := ch.Read(64, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestStartProcessEcho(t *testing.T) {
	ch, err := Open()
	require.NoError(t, err)
	defer ch.Close()

	cmd, err := ch.StartProcess("/bin/cat")
	require.NoError(t, err)
	require.NotNil(t, cmd)
	require.Greater(t, cmd.Process.Pid, 0)
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	_, err = ch.Write([]byte("hello\n"))
	require.NoError(t, err)

	var out strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := ch.Read(256, 100*time.Millisecond)
		require.NoError(t, err)
		out.Write(data)
		if strings.Contains(out.String(), "hello") {
			break
		}
	}
	assert.Contains(t, out.String(), "hello")
}

func TestStartProcessMissingBinary(t *testing.T) {
	ch, err := Open()
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.StartProcess("/nonexistent/interpreter-binary")
	assert.Error(t, err)
}

func TestWriteAfterClose(t *testing.T) {
	ch, err := Open()
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	_, err = ch.Write([]byte("x"))
	assert.ErrorIs(t, err, engine.ErrChannelClosed)
}

func TestResize(t *testing.T) {
	ch, err := Open()
	require.NoError(t, err)
	defer ch.Close()

	assert.NoError(t, ch.Resize(120, 40))
}
