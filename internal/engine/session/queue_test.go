package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueuePushPop(t *testing.T) {
	q := newChunkQueue()

	q.push("a")
	q.push("b")

	chunk, ok := q.pop(0)
	assert.True(t, ok)
	assert.Equal(t, "a", chunk)

	chunk, ok = q.pop(0)
	assert.True(t, ok)
	assert.Equal(t, "b", chunk)

	_, ok = q.pop(0)
	assert.False(t, ok)
}

func TestQueuePopTimeout(t *testing.T) {
	q := newChunkQueue()

	start := time.Now()
	_, ok := q.pop(50 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := newChunkQueue()

	go func() {
		time.Sleep(30 * time.Millisecond)
		q.push("late")
	}()

	chunk, ok := q.pop(2 * time.Second)
	assert.True(t, ok)
	assert.Equal(t, "late", chunk)
}

func TestQueueDrain(t *testing.T) {
	q := newChunkQueue()
	q.push("1")
	q.push("2")
	q.push("3")

	assert.Equal(t, []string{"1", "2"}, q.drain(2))
	assert.Equal(t, 1, q.len())
	assert.Equal(t, []string{"3"}, q.drain(0))
	assert.Empty(t, q.drain(0))
}

func TestQueueReset(t *testing.T) {
	q := newChunkQueue()
	q.push("x")
	q.reset()
	assert.Equal(t, 0, q.len())
	_, ok := q.pop(0)
	assert.False(t, ok)
}
