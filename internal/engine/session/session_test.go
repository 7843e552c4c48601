package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// catConfig runs /bin/cat as a stand-in interpreter. The PTY line
// discipline echoes input, so cat sessions produce every line twice.
func catConfig() Config {
	return Config{
		Program:        "/bin/cat",
		PollInterval:   20 * time.Millisecond,
		ChunkWait:      50 * time.Millisecond,
		QuietWindow:    100 * time.Millisecond,
		GracefulStop:   time.Second,
		ReadBufferSize: 1024,
	}
}

func startCat(t *testing.T) *Session {
	t.Helper()
	s := New("test-"+t.Name(), catConfig(), nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Terminate() })
	return s
}

// collectUntil accumulates queued output until the predicate holds or the
// deadline passes.
func collectUntil(t *testing.T, s *Session, timeout time.Duration, pred func(string) bool) string {
	t.Helper()
	var out strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out.WriteString(s.ReadOutput(50 * time.Millisecond))
		if pred(out.String()) {
			return out.String()
		}
	}
	return out.String()
}

func TestLifecycle(t *testing.T) {
	s := New("vm_lifecycle", catConfig(), nil)

	assert.Equal(t, StateNotStarted, s.State())
	assert.False(t, s.IsRunning())
	assert.Equal(t, 0, s.PID())

	require.NoError(t, s.Start())
	assert.Equal(t, StateRunning, s.State())
	assert.True(t, s.IsRunning())
	assert.Greater(t, s.PID(), 0)

	assert.ErrorIs(t, s.Start(), engine.ErrAlreadyRunning)

	require.NoError(t, s.Terminate())
	assert.Equal(t, StateTerminated, s.State())
	assert.False(t, s.IsRunning())

	// Idempotent
	require.NoError(t, s.Terminate())

	// Terminated sessions are not restartable
	assert.ErrorIs(t, s.Start(), engine.ErrNotRunning)
}

func TestTerminateWithoutStart(t *testing.T) {
	s := New("vm_never_started", catConfig(), nil)
	require.NoError(t, s.Terminate())
	assert.Equal(t, StateTerminated, s.State())
	assert.ErrorIs(t, s.Start(), engine.ErrNotRunning)
}

func TestOperationsBeforeStart(t *testing.T) {
	s := New("vm_not_started", catConfig(), nil)

	assert.ErrorIs(t, s.SendInput("x"), engine.ErrNotRunning)
	assert.ErrorIs(t, s.Resize(80, 24), engine.ErrNotRunning)

	_, err := s.ExecuteAndWait("x", time.Second)
	assert.ErrorIs(t, err, engine.ErrNotRunning)
}

func TestOperationsAfterTerminate(t *testing.T) {
	s := startCat(t)
	require.NoError(t, s.Terminate())

	assert.ErrorIs(t, s.SendInput("x"), engine.ErrNotRunning)
	assert.ErrorIs(t, s.Attach(nil), engine.ErrNotRunning)

	_, err := s.ExecuteAndWait("x", time.Second)
	assert.ErrorIs(t, err, engine.ErrNotRunning)
}

func TestOutputOrdering(t *testing.T) {
	s := startCat(t)

	require.NoError(t, s.SendInput("first-marker"))
	require.NoError(t, s.SendInput("second-marker"))

	out := collectUntil(t, s, 3*time.Second, func(acc string) bool {
		return strings.Contains(acc, "first-marker") && strings.Contains(acc, "second-marker")
	})
	first := strings.Index(out, "first-marker")
	second := strings.Index(out, "second-marker")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second)
}

func TestReadOutputTimeout(t *testing.T) {
	s := startCat(t)

	start := time.Now()
	out := s.ReadOutput(60 * time.Millisecond)
	assert.Empty(t, out)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDrainOutput(t *testing.T) {
	s := startCat(t)

	require.NoError(t, s.SendInput("drain-me"))
	out := collectUntil(t, s, 3*time.Second, func(acc string) bool {
		return strings.Contains(acc, "drain-me")
	})
	assert.Contains(t, out, "drain-me")
	time.Sleep(150 * time.Millisecond)
	s.DrainOutput(0)

	// Everything was consumed above; a fresh drain is empty and non-blocking.
	start := time.Now()
	assert.Empty(t, s.DrainOutput(0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAttachReceivesOutput(t *testing.T) {
	s := startCat(t)

	var mu sync.Mutex
	var seen strings.Builder
	require.NoError(t, s.Attach(func(chunk string) {
		mu.Lock()
		seen.WriteString(chunk)
		mu.Unlock()
	}))
	assert.True(t, s.Attached())

	require.NoError(t, s.SendInput("observer-marker"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return strings.Contains(seen.String(), "observer-marker")
	}, 3*time.Second, 20*time.Millisecond)

	// Callbacks observe; the queue still buffers the same output.
	assert.Greater(t, s.QueuedChunks(), 0)
}

func TestDetachKeepsSessionAlive(t *testing.T) {
	s := startCat(t)

	require.NoError(t, s.Attach(func(string) {}))
	s.Detach()

	assert.False(t, s.Attached())
	assert.True(t, s.IsRunning())
	assert.NoError(t, s.SendInput("still-alive"))
}

func TestAttachAutoStarts(t *testing.T) {
	s := New("vm_autostart", catConfig(), nil)
	t.Cleanup(func() { s.Terminate() })

	require.NoError(t, s.Attach(func(string) {}))
	assert.True(t, s.IsRunning())
	assert.True(t, s.Attached())
}

func TestCallbackPanicDoesNotKillReader(t *testing.T) {
	s := startCat(t)

	require.NoError(t, s.Attach(func(string) { panic("observer bug") }))
	require.NoError(t, s.SendInput("boom"))

	// Wait for the panicking callback to fire at least once.
	require.Eventually(t, func() bool {
		return s.QueuedChunks() > 0
	}, 3*time.Second, 20*time.Millisecond)

	s.Detach()
	require.NoError(t, s.SendInput("after-panic"))
	out := collectUntil(t, s, 3*time.Second, func(acc string) bool {
		return strings.Contains(acc, "after-panic")
	})
	assert.Contains(t, out, "after-panic")
}

func TestExecuteAndWait(t *testing.T) {
	s := startCat(t)

	out, err := s.ExecuteAndWait("exec-marker", 3*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "exec-marker")
}

func TestExecuteAndWaitShell(t *testing.T) {
	cfg := catConfig()
	cfg.Program = "/bin/sh"
	cfg.Args = []string{"-i"}
	s := New("vm_shell", cfg, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Terminate() })

	out, err := s.ExecuteAndWait("echo $((40+2))", 3*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "42")
}

func TestExecuteTimeoutReturnsAccumulated(t *testing.T) {
	cfg := catConfig()
	// Quiet window longer than the timeout forces the timeout path.
	cfg.QuietWindow = 10 * time.Second
	s := New("vm_exec_timeout", cfg, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Terminate() })

	start := time.Now()
	out, err := s.ExecuteAndWait("timeout-marker", 400*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
	assert.Contains(t, out, "timeout-marker")
}

func TestExecuteClearsQueue(t *testing.T) {
	s := startCat(t)

	require.NoError(t, s.SendInput("leftover"))
	require.Eventually(t, func() bool {
		return s.QueuedChunks() > 0
	}, 3*time.Second, 20*time.Millisecond)

	out, err := s.ExecuteAndWait("fresh-marker", 3*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "fresh-marker")
	assert.NotContains(t, out, "leftover")
}

func TestChildExitObserved(t *testing.T) {
	cfg := catConfig()
	cfg.Program = "/bin/sh"
	cfg.Args = []string{"-c", "exit 0"}
	s := New("vm_short_lived", cfg, nil)
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Terminate() })

	require.Eventually(t, func() bool {
		return !s.IsRunning()
	}, 3*time.Second, 20*time.Millisecond)

	// State is still Running until Terminate performs cleanup.
	assert.Equal(t, StateRunning, s.State())
	require.NoError(t, s.Terminate())
	assert.Equal(t, StateTerminated, s.State())
}

func TestInfoSnapshot(t *testing.T) {
	s := startCat(t)

	info := s.Info()
	assert.Equal(t, s.ID(), info.ID)
	assert.True(t, info.Running)
	assert.False(t, info.Attached)
	assert.Equal(t, "/bin/cat", info.Program)
	assert.Greater(t, info.PID, 0)
	assert.False(t, info.StartedAt.IsZero())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()
	assert.Equal(t, def, cfg)

	partial := Config{Program: "/bin/cat"}.withDefaults()
	assert.Equal(t, "/bin/cat", partial.Program)
	assert.Nil(t, partial.Args)
	assert.Equal(t, def.PollInterval, partial.PollInterval)
}
