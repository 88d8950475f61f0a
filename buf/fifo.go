package buf

import (
	"time"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/pkt"
)

// FIFO is a bounded, strictly first-in-first-out Buffer: Put blocks the
// caller while the queue is at MaxSize, per the "bounded-FIFO variant"
// named in §4.4.
type FIFO struct {
	core
}

// NewFIFO returns a FIFO buffer with the given capacity, flush watermark
// and flush interval. It fails with BufferSizingError if maxSize is set
// and does not exceed flushSize.
func NewFIFO(maxSize, flushSize int, flushInterval time.Duration) (*FIFO, error) {
	c, err := newCore(maxSize, flushSize, flushInterval)
	if err != nil {
		return nil, err
	}
	return &FIFO{core: c}, nil
}

// Put implements Buffer.Put, blocking while the queue is full.
func (f *FIFO) Put(p pkt.Packet) error {
	if p == nil {
		return errors.E(errors.WrongType)
	}
	return f.putFIFO(p)
}

// Unblock releases any goroutine currently blocked in Put, so that a
// worker shutdown with a full buffer cannot deadlock.
func (f *FIFO) Unblock() {
	f.unblock()
}
