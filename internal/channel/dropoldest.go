package channel

import "sync/atomic"

// DropOldest is a bounded channel whose Send never blocks: when the buffer
// is full the oldest unread value is discarded to make room. It supports a
// single sender and any number of receivers.
type DropOldest[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// NewDropOldest creates a drop-oldest channel holding at most size values.
func NewDropOldest[T any](size int) *DropOldest[T] {
	if size < 1 {
		size = 1
	}
	return &DropOldest[T]{ch: make(chan T, size)}
}

// Send enqueues v, evicting the oldest value if the buffer is full.
func (d *DropOldest[T]) Send(v T) {
	for {
		select {
		case d.ch <- v:
			return
		default:
		}
		select {
		case <-d.ch:
			d.dropped.Add(1)
		default:
			// a receiver drained it in between
		}
	}
}

// Receive returns the receive-only channel
func (d *DropOldest[T]) Receive() <-chan T {
	return d.ch
}

// Len returns the number of items currently in the buffer
func (d *DropOldest[T]) Len() int {
	return len(d.ch)
}

// Cap returns the buffer size.
func (d *DropOldest[T]) Cap() int {
	return cap(d.ch)
}

// Dropped returns how many values were discarded so far.
func (d *DropOldest[T]) Dropped() uint64 {
	return d.dropped.Load()
}

// Close closes the channel. Send must not be called afterwards.
func (d *DropOldest[T]) Close() {
	close(d.ch)
}

var _ Channel[int] = (*DropOldest[int])(nil)
