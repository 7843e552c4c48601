package session

import (
	"sync"
	"time"
)

// chunkQueue is an unbounded FIFO of output chunks with timed pops.
// Insertion order is arrival order; chunks are never merged or reordered.
type chunkQueue struct {
	mu     sync.Mutex
	chunks []string
	notify chan struct{}
}

func newChunkQueue() *chunkQueue {
	return &chunkQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *chunkQueue) push(chunk string) {
	q.mu.Lock()
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop removes the oldest chunk, blocking up to timeout. The second return
// is false when the queue stayed empty for the whole wait.
func (q *chunkQueue) pop(timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.chunks) > 0 {
			chunk := q.chunks[0]
			q.chunks = q.chunks[1:]
			q.mu.Unlock()
			return chunk, true
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", false
		}
		select {
		case <-q.notify:
		case <-time.After(remaining):
		}
	}
}

// drain removes up to max chunks without blocking. max <= 0 means all.
func (q *chunkQueue) drain(max int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.chunks)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	copy(out, q.chunks[:n])
	q.chunks = q.chunks[n:]
	return out
}

func (q *chunkQueue) reset() {
	q.mu.Lock()
	q.chunks = nil
	q.mu.Unlock()
}

func (q *chunkQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}
