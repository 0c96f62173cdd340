package writequeue

import "errors"

var (
	// ErrQueueCleared rejects writes that were pending when the queue was cleared.
	ErrQueueCleared = errors.New("writequeue: queue cleared")

	// ErrQueueClosed rejects writes submitted after Close.
	ErrQueueClosed = errors.New("writequeue: queue closed")
)
