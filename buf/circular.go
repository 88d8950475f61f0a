package buf

import (
	"time"

	"github.com/lucabaldini/baldaquin/errors"
	"github.com/lucabaldini/baldaquin/pkt"
)

// Circular is a fixed-capacity ring Buffer: Put never blocks, overwriting
// the oldest queued packet once the queue reaches MaxSize, per the
// "simple-ring variant" named in §4.4.
type Circular struct {
	core
}

// NewCircular returns a Circular buffer with the given capacity, flush
// watermark and flush interval. It fails with BufferSizingError if
// maxSize is set and does not exceed flushSize.
func NewCircular(maxSize, flushSize int, flushInterval time.Duration) (*Circular, error) {
	c, err := newCore(maxSize, flushSize, flushInterval)
	if err != nil {
		return nil, err
	}
	return &Circular{core: c}, nil
}

// Put implements Buffer.Put, overwriting the oldest packet once full.
func (c *Circular) Put(p pkt.Packet) error {
	if p == nil {
		return errors.E(errors.WrongType)
	}
	return c.putCircular(p)
}
