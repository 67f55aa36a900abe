package live

import (
	"context"
	"sync"
)

// PlaybackQueue buffers inbound model audio between the receive loop and
// the playback goroutine. Put never blocks; Get blocks until audio arrives
// or the context ends. Flush drops everything still queued, which is how
// stale audio is discarded when a turn ends early.
type PlaybackQueue struct {
	mu    sync.Mutex
	items [][]byte
	wake  chan struct{}
}

// NewPlaybackQueue creates an empty queue.
func NewPlaybackQueue() *PlaybackQueue {
	return &PlaybackQueue{wake: make(chan struct{}, 1)}
}

// Put enqueues one audio chunk.
func (q *PlaybackQueue) Put(data []byte) {
	q.mu.Lock()
	q.items = append(q.items, data)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Get dequeues the next chunk, blocking until one is available.
func (q *PlaybackQueue) Get(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Flush discards all queued chunks.
func (q *PlaybackQueue) Flush() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Len reports the number of queued chunks.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
