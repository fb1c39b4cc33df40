// Package channel holds the render hand-off between the simulation loop and
// its consumers. The loop sends one frame per tick and must never wait on a
// slow viewer, so sends are lossy and the loss is counted.
package channel

// Receiver is the consumer side: the viewer stream or a test draining frames.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender is the producer side. Send does not block; Dropped reports how many
// values were discarded to keep it that way.
type Sender[T any] interface {
	Send(T)
	Dropped() uint64
}

// Channel is a hand-off owned by one run. Close ends the stream for
// receivers once the run is over.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
