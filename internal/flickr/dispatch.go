package flickr

import (
	"context"

	"github.com/alitto/pond/v2"
)

// Dispatcher runs completion callbacks on the caller's chosen execution context.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// SerialQueue is a Dispatcher that runs callbacks one at a time, in a single
// background context, so consumers need no locking of their own.
type SerialQueue struct {
	pool pond.Pool
}

// NewSerialQueue starts a queue that lives until Close is called or ctx is done.
func NewSerialQueue(ctx context.Context) *SerialQueue {
	return &SerialQueue{pool: pond.NewPool(1, pond.WithContext(ctx))}
}

// Dispatch enqueues fn. Callbacks dispatched after Close are dropped.
func (q *SerialQueue) Dispatch(fn func()) {
	q.pool.Submit(fn)
}

// Close waits for queued callbacks to finish and stops the queue.
func (q *SerialQueue) Close() {
	_ = q.pool.Stop().Wait()
}
