package stream

import (
	"context"
	"sync/atomic"

	marketdata "github.com/Dmurillo722/moby/internal/domain/entity/marketdata"
)

// DefaultQueueCapacity bounds buffered frames when the host supplies no
// explicit capacity.
const DefaultQueueCapacity = 5000

// Queue is the bounded FIFO hand-off between the feed connector and the
// worker pool. It is the system's only backpressure mechanism: enqueue
// never blocks, and a full queue sheds the newest frame instead of growing
// or stalling the network read path. One slot holds one network frame.
type Queue struct {
	frames chan *marketdata.FeedMessage
	drops  atomic.Uint64
}

// NewQueue builds a queue with the given capacity, falling back to
// DefaultQueueCapacity when it is non-positive.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{frames: make(chan *marketdata.FeedMessage, capacity)}
}

// TryEnqueue offers a frame without blocking. Returns false when the queue
// is full; the frame is dropped and counted.
func (q *Queue) TryEnqueue(msg *marketdata.FeedMessage) bool {
	select {
	case q.frames <- msg:
		return true
	default:
		q.drops.Add(1)
		return false
	}
}

// Dequeue blocks until a frame is available or the context is cancelled.
// The second return is false only on cancellation.
func (q *Queue) Dequeue(ctx context.Context) (*marketdata.FeedMessage, bool) {
	select {
	case msg := <-q.frames:
		return msg, true
	case <-ctx.Done():
		return nil, false
	}
}

// Len reports the number of buffered frames.
func (q *Queue) Len() int {
	return len(q.frames)
}

// Cap reports the fixed capacity.
func (q *Queue) Cap() int {
	return cap(q.frames)
}

// Drops reports the number of frames shed since construction.
func (q *Queue) Drops() uint64 {
	return q.drops.Load()
}
