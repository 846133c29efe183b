package queue

import (
	"context"

	"github.com/andys/netcollector/flow"
)

// Queue is a bounded FIFO of flow messages shared by the polling workers and
// the persistence worker. Put blocks while the queue is full; TryGet never blocks.
type Queue struct {
	ch chan flow.Message
}

// New creates a queue holding at most capacity messages
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan flow.Message, capacity)}
}

// Put enqueues msg, waiting for space. It only gives up when ctx is done.
func (q *Queue) Put(ctx context.Context, msg flow.Message) error {
	select {
	case q.ch <- msg:
		return nil
	default:
	}
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryGet dequeues the oldest message if one is available
func (q *Queue) TryGet() (flow.Message, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	default:
		return flow.Message{}, false
	}
}

// Len returns the number of buffered messages
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return cap(q.ch)
}
