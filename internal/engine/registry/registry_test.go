package registry

import (
	"testing"
	"time"

	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine"
	"github.com/aptitudetechnology/pylua-bioxen-vm/internal/engine/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory(program string, args ...string) Factory {
	return func(sessionID string) *session.Session {
		return session.New(sessionID, session.Config{
			Program:        program,
			Args:           args,
			PollInterval:   20 * time.Millisecond,
			GracefulStop:   time.Second,
			ReadBufferSize: 256,
		}, nil)
	}
}

func catFactory() Factory { return testFactory("/bin/cat") }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(nil)
	t.Cleanup(func() { r.CleanupAll() })
	return r
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(t)

	s, err := r.Create("vm_a", catFactory())
	require.NoError(t, err)
	assert.Equal(t, "vm_a", s.ID())

	got, ok := r.Get("vm_a")
	assert.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Get("vm_missing")
	assert.False(t, ok)
}

func TestCreateDuplicate(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create("vm_dup", catFactory())
	require.NoError(t, err)

	_, err = r.Create("vm_dup", catFactory())
	assert.ErrorIs(t, err, engine.ErrAlreadyExists)
}

func TestRemoveTerminates(t *testing.T) {
	r := newTestRegistry(t)

	s, err := r.Create("vm_rm", catFactory())
	require.NoError(t, err)
	require.NoError(t, s.Start())

	assert.True(t, r.Remove("vm_rm"))
	assert.Equal(t, session.StateTerminated, s.State())

	_, ok := r.Get("vm_rm")
	assert.False(t, ok)

	// Unknown id is a no-op
	assert.False(t, r.Remove("vm_rm"))
}

func TestIDReusableAfterRemove(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Create("vm_reuse", catFactory())
	require.NoError(t, err)
	require.True(t, r.Remove("vm_reuse"))

	s, err := r.Create("vm_reuse", catFactory())
	require.NoError(t, err)
	assert.Equal(t, session.StateNotStarted, s.State())
}

func TestListSorted(t *testing.T) {
	r := newTestRegistry(t)

	for _, id := range []string{"vm_c", "vm_a", "vm_b"} {
		_, err := r.Create(id, catFactory())
		require.NoError(t, err)
	}

	infos := r.List()
	require.Len(t, infos, 3)
	assert.Equal(t, "vm_a", infos[0].ID)
	assert.Equal(t, "vm_b", infos[1].ID)
	assert.Equal(t, "vm_c", infos[2].ID)
}

func TestCleanupDead(t *testing.T) {
	r := newTestRegistry(t)

	alive, err := r.Create("vm_alive", catFactory())
	require.NoError(t, err)
	require.NoError(t, alive.Start())

	dead, err := r.Create("vm_dead", testFactory("/bin/sh", "-c", "exit 0"))
	require.NoError(t, err)
	require.NoError(t, dead.Start())
	require.Eventually(t, func() bool {
		return !dead.IsRunning()
	}, 3*time.Second, 20*time.Millisecond)

	// Never started, so not dead
	_, err = r.Create("vm_idle", catFactory())
	require.NoError(t, err)

	removed := r.CleanupDead()
	assert.Equal(t, []string{"vm_dead"}, removed)

	_, ok := r.Get("vm_alive")
	assert.True(t, ok)
	_, ok = r.Get("vm_idle")
	assert.True(t, ok)
	_, ok = r.Get("vm_dead")
	assert.False(t, ok)
}

func TestCleanupAll(t *testing.T) {
	r := newTestRegistry(t)

	for _, id := range []string{"vm_1", "vm_2"} {
		s, err := r.Create(id, catFactory())
		require.NoError(t, err)
		require.NoError(t, s.Start())
	}

	assert.Equal(t, 2, r.CleanupAll())
	assert.Empty(t, r.List())
	assert.Equal(t, 0, r.CleanupAll())
}

func TestFindByPattern(t *testing.T) {
	r := newTestRegistry(t)

	for _, id := range []string{"worker-1", "worker-2", "db-1"} {
		_, err := r.Create(id, catFactory())
		require.NoError(t, err)
	}

	ids, err := r.FindByPattern("worker-*")
	require.NoError(t, err)
	assert.Equal(t, []string{"worker-1", "worker-2"}, ids)

	ids, err = r.FindByPattern("missing-*")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = r.FindByPattern("[invalid")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	r := newTestRegistry(t)

	attached, err := r.Create("vm_watched", catFactory())
	require.NoError(t, err)
	require.NoError(t, attached.Start())
	require.NoError(t, attached.Attach(func(string) {}))

	idle, err := r.Create("vm_background", catFactory())
	require.NoError(t, err)
	require.NoError(t, idle.Start())

	// Never started; counts only toward the total
	_, err = r.Create("vm_pending", catFactory())
	require.NoError(t, err)

	dead, err := r.Create("vm_gone", testFactory("/bin/sh", "-c", "exit 0"))
	require.NoError(t, err)
	require.NoError(t, dead.Start())
	require.Eventually(t, func() bool {
		return !dead.IsRunning()
	}, 3*time.Second, 20*time.Millisecond)

	stats := r.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Running)
	assert.Equal(t, 1, stats.Attached)
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 1, stats.Dead)
}
