// Package videobuffer provides a lossy latest-frame hand-off between one
// producer goroutine (the Decoder) and one consumer goroutine (a renderer),
// with constant memory: no allocation, no queueing, no blocking on the
// consumer side.
package videobuffer

import "sync"

// Interrupter is implemented by consumer-side adapters that block waiting
// for a frame (e.g. a renderer with its own condition variable). Buffer
// itself never blocks and does not use it, and the Stream's shutdown path
// calls sink.Interrupter on the Decoder, not this interface.
type Interrupter interface {
	Interrupt()
}

// Callbacks are invoked by the producer side of Buffer after each Offer.
// OnFrameAvailable is required; OnFrameSkipped is optional and fires
// instead of OnFrameAvailable when a previously offered, not-yet-consumed
// frame was dropped to make room for a newer one.
type Callbacks[F any] struct {
	OnFrameAvailable func(f F)
	OnFrameSkipped   func(f F)
}

// Buffer is a three-slot hand-off: producer, pending, consumer. The
// producer thread writes only to its own slot; the consumer thread reads
// only from its own slot; pending is the slot ownership crosses under the
// mutex. A single pendingConsumed boolean is all the synchronization state
// needed — no queue, because the consumer only ever wants the latest frame.
type Buffer[F any] struct {
	mu sync.Mutex

	producer        F
	pending         F
	consumer        F
	pendingConsumed bool

	cbs    Callbacks[F]
	cbsSet bool
}

// New returns a Buffer with no frame available yet.
func New[F any]() *Buffer[F] {
	return &Buffer[F]{pendingConsumed: true}
}

// SetConsumerCallbacks registers the callbacks the producer side invokes
// after each Offer. It must be called exactly once, before the first Offer.
func (b *Buffer[F]) SetConsumerCallbacks(cbs Callbacks[F]) {
	if cbs.OnFrameAvailable == nil {
		panic("videobuffer: OnFrameAvailable callback is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cbsSet {
		panic("videobuffer: SetConsumerCallbacks called more than once")
	}
	b.cbs = cbs
	b.cbsSet = true
}

// Offer is called by the producer with a new frame. It stores frame in the
// producer slot, swaps that slot into pending, and reports, via callback,
// whether the previous pending frame was skipped.
func (b *Buffer[F]) Offer(frame F) {
	b.mu.Lock()
	b.producer = frame
	b.pending, b.producer = b.producer, b.pending
	skipped := !b.pendingConsumed
	b.pendingConsumed = false
	cbs := b.cbs
	b.mu.Unlock()

	if skipped {
		if cbs.OnFrameSkipped != nil {
			cbs.OnFrameSkipped(frame)
		}
	} else {
		cbs.OnFrameAvailable(frame)
	}
}

// Take is called by the consumer to retrieve the latest offered frame. It
// panics if called without an available frame (the caller is expected to
// call it only from within OnFrameAvailable/OnFrameSkipped, or after
// tracking availability itself) — this mirrors the original's assertion
// that Take is never called speculatively.
func (b *Buffer[F]) Take() F {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pendingConsumed {
		panic("videobuffer: Take called with no pending frame")
	}
	b.pendingConsumed = true
	b.consumer, b.pending = b.pending, b.consumer
	var zero F
	b.pending = zero
	return b.consumer
}
